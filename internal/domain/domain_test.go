package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessageWireShape(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	msg := NewChatMessage("alice", "hi", "lobby", ts)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Username":"alice","Message":"hi","Room":"lobby","Timestamp":"2024-03-01T11:00:00Z"}`, string(data))
}

func TestParseCounterPolicy(t *testing.T) {
	p, err := ParseCounterPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyPerMembership, p)

	p, err = ParseCounterPolicy(" Per-Session ")
	require.NoError(t, err)
	assert.Equal(t, PolicyPerSession, p)

	p, err = ParseCounterPolicy("legacy")
	require.NoError(t, err)
	assert.Equal(t, PolicyLegacy, p)

	_, err = ParseCounterPolicy("per-planet")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestLoginCountEventKeepsZero(t *testing.T) {
	data, err := json.Marshal(NewLoginCountEvent(0))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"count":0`)

	data, err = json.Marshal(NewRoomChangedEvent("hall"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"count"`)
	assert.Contains(t, string(data), `"room":"hall"`)
}
