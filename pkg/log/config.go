package log

import (
	"io"
	stdlog "log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how a logger is built. Fields are attached to every line.
type Config struct {
	Level       string            `mapstructure:"level"`
	Pretty      bool              `mapstructure:"pretty"`
	ServiceName string            `mapstructure:"service_name"`
	Fields      map[string]string `mapstructure:"fields"`
}

var (
	mu     sync.RWMutex
	global = zerolog.New(os.Stdout).With().Timestamp().Logger()

	bridgeOnce sync.Once
)

// New builds a logger writing to stdout, or to a console writer when Pretty is set.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(cfg Config, out io.Writer) zerolog.Logger {
	w := out
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	c := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.ServiceName != "" {
		c = c.Str(FieldService, cfg.ServiceName)
	}
	keys := make([]string, 0, len(cfg.Fields))
	for k := range cfg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c = c.Str(k, cfg.Fields[k])
	}
	return c.Logger()
}

// Init builds a logger from cfg, makes it the global one and returns it.
// It may be called again; the stdlib log package always follows the
// current global.
func Init(cfg Config) zerolog.Logger {
	logger := New(cfg)
	Set(logger)
	bridgeOnce.Do(func() {
		stdlog.SetFlags(0)
		stdlog.SetOutput(stdlogWriter{})
	})
	return logger
}

// Set replaces the global logger.
func Set(l zerolog.Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

// L returns the global logger.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// stdlogWriter turns stdlib log.Printf output into info lines on L.
type stdlogWriter struct{}

func (stdlogWriter) Write(p []byte) (int, error) {
	l := L()
	l.Info().Str(FieldSource, "stdlog").Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// ParseLevel accepts zerolog level names plus "warning" and "off".
// Empty or unknown values mean info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
