package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/chat-relay/internal/domain"
)

// decrFloorScript decrements KEYS[1] and clamps it at zero in one round trip.
var decrFloorScript = redis.NewScript(`
local v = redis.call('DECR', KEYS[1])
if v < 0 then
	redis.call('SET', KEYS[1], 0)
	return 0
end
return v
`)

type RedisCounterStore struct {
	client *redis.Client
	key    string
}

func NewRedisCounterStore(client *redis.Client, keys Keys) *RedisCounterStore {
	return &RedisCounterStore{client: client, key: keys.Counter}
}

func (s *RedisCounterStore) Get(ctx context.Context) (int64, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, redisErr("get", s.key, err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w: %w", s.key, domain.ErrSerialization, err)
	}
	return n, nil
}

func (s *RedisCounterStore) Set(ctx context.Context, value int64) error {
	if value < 0 {
		return fmt.Errorf("%w: counter value %d is negative", domain.ErrInvalidArgument, value)
	}
	if err := s.client.Set(ctx, s.key, value, 0).Err(); err != nil {
		return redisErr("set", s.key, err)
	}
	return nil
}

func (s *RedisCounterStore) Incr(ctx context.Context) (int64, error) {
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, redisErr("incr", s.key, err)
	}
	return n, nil
}

func (s *RedisCounterStore) DecrFloor(ctx context.Context) (int64, error) {
	n, err := decrFloorScript.Run(ctx, s.client, []string{s.key}).Int64()
	if err != nil {
		return 0, redisErr("decr", s.key, err)
	}
	return n, nil
}
