package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/chat-relay/internal/domain"
)

// RedisMessageStore keeps each room's log in a Redis list of JSON entries.
type RedisMessageStore struct {
	client    *redis.Client
	keys      Keys
	maxLength int64
}

// NewRedisMessageStore returns a log store. maxLength > 0 caps each room's log
// to its newest maxLength entries; 0 leaves it unbounded.
func NewRedisMessageStore(client *redis.Client, keys Keys, maxLength int64) *RedisMessageStore {
	return &RedisMessageStore{
		client:    client,
		keys:      keys,
		maxLength: maxLength,
	}
}

func (s *RedisMessageStore) Append(ctx context.Context, room string, msg *domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w: %w", domain.ErrSerialization, err)
	}

	key := s.keys.messages(room)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if s.maxLength > 0 {
			pipe.LTrim(ctx, key, -s.maxLength, -1)
		}
		return nil
	})
	if err != nil {
		return redisErr("append", key, err)
	}
	return nil
}

func (s *RedisMessageStore) RangeFromEnd(ctx context.Context, room string, count int) ([]domain.ChatMessage, error) {
	if count <= 0 {
		return []domain.ChatMessage{}, nil
	}
	return s.lrange(ctx, room, -int64(count), -1)
}

func (s *RedisMessageStore) RangeAll(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	return s.lrange(ctx, room, 0, -1)
}

func (s *RedisMessageStore) lrange(ctx context.Context, room string, start, stop int64) ([]domain.ChatMessage, error) {
	key := s.keys.messages(room)
	raw, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, redisErr("range", key, err)
	}

	messages := make([]domain.ChatMessage, 0, len(raw))
	for i, entry := range raw {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("decode %s entry %d: %w: %w", key, i, domain.ErrSerialization, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Close is a no-op; the shared client is closed by its owner.
func (s *RedisMessageStore) Close() error {
	return nil
}
