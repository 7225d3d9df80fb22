package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/chat-relay/pkg/log"
)

func captured(t *testing.T, fn func(ctx context.Context)) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	logger := log.NewWithWriter(log.Config{Level: "debug", ServiceName: "test"}, &buf)
	fn(log.WithLogger(context.Background(), logger))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLog(t *testing.T) {
	entry := captured(t, func(ctx context.Context) {
		Log(ctx, ActionJoinRoom, "s1", "lobby", "joined")
	})
	assert.Equal(t, "audit", entry["log_type"])
	assert.Equal(t, "relay.join_room", entry["action"])
	assert.Equal(t, "s1", entry["session_id"])
	assert.Equal(t, "lobby", entry["room"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogWithDetailReconcileIsWarn(t *testing.T) {
	entry := captured(t, func(ctx context.Context) {
		LogWithDetail(ctx, ActionReconcile, "s1", "hall", "left lobby", "join failed")
	})
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "left lobby", entry["detail"])
}
