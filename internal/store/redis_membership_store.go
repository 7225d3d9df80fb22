package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type RedisMembershipStore struct {
	client *redis.Client
	keys   Keys
}

func NewRedisMembershipStore(client *redis.Client, keys Keys) *RedisMembershipStore {
	return &RedisMembershipStore{client: client, keys: keys}
}

// Add inserts sessionID into room. SADD's reply tells whether the insert was
// new, so there is no separate membership check to race against.
func (s *RedisMembershipStore) Add(ctx context.Context, room, sessionID string) (MembershipChange, error) {
	var added, rooms *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, s.keys.members(room), sessionID)
		pipe.SAdd(ctx, s.keys.sessionRooms(sessionID), room)
		rooms = pipe.SCard(ctx, s.keys.sessionRooms(sessionID))
		return nil
	})
	if err != nil {
		return MembershipChange{}, redisErr("add member", s.keys.members(room), err)
	}
	return MembershipChange{Changed: added.Val() == 1, SessionRooms: rooms.Val()}, nil
}

// Remove deletes sessionID from room; removing an absent session is a no-op.
func (s *RedisMembershipStore) Remove(ctx context.Context, room, sessionID string) (MembershipChange, error) {
	var removed, rooms *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.keys.members(room), sessionID)
		pipe.SRem(ctx, s.keys.sessionRooms(sessionID), room)
		rooms = pipe.SCard(ctx, s.keys.sessionRooms(sessionID))
		return nil
	})
	if err != nil {
		return MembershipChange{}, redisErr("remove member", s.keys.members(room), err)
	}
	return MembershipChange{Changed: removed.Val() == 1, SessionRooms: rooms.Val()}, nil
}

func (s *RedisMembershipStore) Contains(ctx context.Context, room, sessionID string) (bool, error) {
	key := s.keys.members(room)
	ok, err := s.client.SIsMember(ctx, key, sessionID).Result()
	if err != nil {
		return false, redisErr("check member", key, err)
	}
	return ok, nil
}

// Members returns a snapshot of the room's sessions in no particular order.
func (s *RedisMembershipStore) Members(ctx context.Context, room string) ([]string, error) {
	key := s.keys.members(room)
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, redisErr("list members", key, err)
	}
	return members, nil
}

func (s *RedisMembershipStore) RoomsOf(ctx context.Context, sessionID string) ([]string, error) {
	key := s.keys.sessionRooms(sessionID)
	rooms, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, redisErr("list rooms", key, err)
	}
	return rooms, nil
}
