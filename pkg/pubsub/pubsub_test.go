package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomChannelRoundTrip(t *testing.T) {
	for _, room := range []string{"lobby", "a:b:c", "Lobby", "team:red:events"} {
		got, err := RoomFromChannel(RoomChannel(room))
		require.NoError(t, err)
		assert.Equal(t, room, got)
	}
}

func TestRoomFromChannelRejectsForeignChannels(t *testing.T) {
	for _, ch := range []string{"signal:room:x:to_media", "relay:room:lobby", "lobby:events"} {
		_, err := RoomFromChannel(ch)
		assert.Error(t, err, ch)
	}
}

func TestChannelToTopicAndKey(t *testing.T) {
	topic, key, err := channelToTopicAndKey(RoomChannel("hall"), "")
	require.NoError(t, err)
	assert.Equal(t, "relay-events", topic)
	assert.Equal(t, "hall", key)

	topic, _, err = channelToTopicAndKey(RoomChannel("hall"), "custom")
	require.NoError(t, err)
	assert.Equal(t, "custom", topic)
}

func TestNewPublisherSelectsDriver(t *testing.T) {
	p, err := NewPublisher(Config{Driver: ""})
	require.NoError(t, err)
	assert.IsType(t, Discard{}, p)

	_, err = NewPublisher(Config{Driver: "carrier-pigeon"})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	p, err = NewPublisher(Config{Driver: DriverRedis, Redis: RedisConfig{Address: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &RedisPublisher{}, p)
	assert.NoError(t, p.Close())
}

func TestRedisPublisherPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, RoomChannel("lobby"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisherFromClient(client)
	ev, err := NewEvent("receive_message", "lobby", map[string]string{"Message": "hi"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, RoomChannel("lobby"), ev))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "receive_message", got.Type)
	assert.Equal(t, "lobby", got.Room)

	var payload map[string]string
	require.NoError(t, got.UnmarshalPayload(&payload))
	assert.Equal(t, "hi", payload["Message"])

	// Borrowed clients stay usable after Close.
	require.NoError(t, pub.Close())
	assert.NoError(t, client.Ping(ctx).Err())
}
