package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/chat-relay/internal/config"
	"github.com/weiawesome/chat-relay/internal/domain"
)

// Keys holds the Redis key layout:
//
//	chatroom:{room}        LIST<json ChatMessage>  message log
//	usergroups:{room}      SET<session_id>         room membership
//	sessionrooms:{session} SET<room>               rooms per session
//	login_counter          STRING<int>             login counter
type Keys struct {
	MessagePrefix string
	MemberPrefix  string
	SessionPrefix string
	Counter       string
}

func DefaultKeys() Keys {
	return Keys{
		MessagePrefix: "chatroom:",
		MemberPrefix:  "usergroups:",
		SessionPrefix: "sessionrooms:",
		Counter:       "login_counter",
	}
}

func (k Keys) messages(room string) string        { return k.MessagePrefix + room }
func (k Keys) members(room string) string         { return k.MemberPrefix + room }
func (k Keys) sessionRooms(session string) string { return k.SessionPrefix + session }

// NewRedisClient dials Redis and pings it once.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// redisErr classifies a failed command. Replies saying the key holds the
// wrong type or a non-integer value mean the stored data does not match the
// layout above; anything else is treated as the store being unreachable.
func redisErr(op, key string, err error) error {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		if strings.HasPrefix(msg, "WRONGTYPE") || strings.Contains(msg, "not an integer") {
			return fmt.Errorf("%s %s: %w: %w", op, key, domain.ErrSerialization, err)
		}
	}
	return fmt.Errorf("%s %s: %w: %w", op, key, domain.ErrStoreUnavailable, err)
}
