package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/weiawesome/chat-relay/internal/config"
	"github.com/weiawesome/chat-relay/internal/domain"
)

const createMessagesTable = `
	CREATE TABLE IF NOT EXISTS messages_by_room (
		room       text,
		seq        timeuuid,
		username   text,
		message    text,
		created_at timestamp,
		PRIMARY KEY ((room), seq)
	) WITH CLUSTERING ORDER BY (seq ASC)`

// CassandraMessageStore keeps room logs in a table clustered by a timeuuid
// derived from the message timestamp. Timestamps come back with millisecond
// precision. Retention is not enforced by this driver.
type CassandraMessageStore struct {
	session *gocql.Session
}

// NewCassandraMessageStore connects to the cluster and creates the message
// table if it is missing. The keyspace must already exist.
func NewCassandraMessageStore(cfg config.CassandraConfig) (*CassandraMessageStore, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	if err := session.Query(createMessagesTable).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create messages_by_room: %w", err)
	}

	return &CassandraMessageStore{session: session}, nil
}

func (s *CassandraMessageStore) Append(ctx context.Context, room string, msg *domain.ChatMessage) error {
	err := s.session.Query(
		`INSERT INTO messages_by_room (room, seq, username, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		room,
		gocql.UUIDFromTime(msg.Timestamp),
		msg.Username,
		msg.Message,
		msg.Timestamp,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("append %s: %w: %w", room, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *CassandraMessageStore) RangeFromEnd(ctx context.Context, room string, count int) ([]domain.ChatMessage, error) {
	if count <= 0 {
		return []domain.ChatMessage{}, nil
	}
	messages, err := s.scan(ctx, room,
		`SELECT username, message, created_at FROM messages_by_room WHERE room = ? ORDER BY seq DESC LIMIT ?`,
		room, count)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func (s *CassandraMessageStore) RangeAll(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	return s.scan(ctx, room,
		`SELECT username, message, created_at FROM messages_by_room WHERE room = ? ORDER BY seq ASC`,
		room)
}

func (s *CassandraMessageStore) scan(ctx context.Context, room, query string, args ...interface{}) ([]domain.ChatMessage, error) {
	iter := s.session.Query(query, args...).WithContext(ctx).Iter()

	messages := make([]domain.ChatMessage, 0)
	var (
		username, text string
		createdAt      time.Time
	)
	for iter.Scan(&username, &text, &createdAt) {
		messages = append(messages, domain.ChatMessage{
			Username:  username,
			Message:   text,
			Room:      room,
			Timestamp: createdAt.UTC(),
		})
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("range %s: %w: %w", room, domain.ErrStoreUnavailable, err)
	}
	return messages, nil
}

func (s *CassandraMessageStore) Close() error {
	s.session.Close()
	return nil
}

func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.LocalQuorum
	}
}
