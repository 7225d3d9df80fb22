package log

import (
	"bytes"
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"chatty":  zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewWithWriterTagsService(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info", ServiceName: "chat-relay"}, &buf)
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "chat-relay", line[FieldService])
	assert.Equal(t, "shown", line["message"])
}

func TestNewWithWriterAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Fields: map[string]string{"instance": "node-1", "zone": "a"}}, &buf)
	l.Info().Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "node-1", line["instance"])
	assert.Equal(t, "a", line["zone"])
	assert.Less(t, strings.Index(buf.String(), `"instance"`), strings.Index(buf.String(), `"zone"`))
}

func TestSetReplacesGlobalAndStdlogFollows(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	Init(Config{Level: "info"})

	var first, second bytes.Buffer
	Set(NewWithWriter(Config{ServiceName: "first"}, &first))
	stdlog.Print("one")
	Set(NewWithWriter(Config{ServiceName: "second"}, &second))
	stdlog.Print("two")

	assert.Contains(t, first.String(), `"message":"one"`)
	assert.NotContains(t, first.String(), "two")
	assert.Contains(t, second.String(), `"message":"two"`)
	assert.Contains(t, second.String(), `"source":"stdlog"`)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(second.Bytes(), &line))
	assert.Equal(t, "second", line[FieldService])
}

func TestWithSessionTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{}, &buf)

	ctx := WithSession(WithLogger(context.Background(), l), "s-1")
	got := Ctx(ctx)
	got.Info().Msg("tagged")
	assert.Contains(t, buf.String(), `"session_id":"s-1"`)
}

func TestCtxWithoutLoggerReturnsGlobal(t *testing.T) {
	got := Ctx(context.Background())
	assert.Equal(t, L().GetLevel(), got.GetLevel())
}

func TestGinMiddlewareRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := NewWithWriter(Config{}, &buf)

	r := gin.New()
	r.Use(GinMiddleware(logger))
	r.GET("/ping", func(c *gin.Context) {
		l := Ctx(c.Request.Context())
		l.Info().Msg("inside")
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(headerRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(headerRequestID))
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
	assert.Contains(t, buf.String(), "request completed")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}
