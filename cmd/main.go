package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/chat-relay/internal/config"
	"github.com/weiawesome/chat-relay/internal/domain"
	"github.com/weiawesome/chat-relay/internal/engine"
	"github.com/weiawesome/chat-relay/internal/handler"
	"github.com/weiawesome/chat-relay/internal/hub"
	"github.com/weiawesome/chat-relay/internal/store"
	pkglog "github.com/weiawesome/chat-relay/pkg/log"
	"github.com/weiawesome/chat-relay/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	fields := map[string]string{}
	for k, v := range cfg.Log.Fields {
		fields[k] = v
	}
	if host, err := os.Hostname(); err == nil {
		fields["instance"] = host
	}
	logger := pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-relay",
		Fields:      fields,
	})

	policy, err := domain.ParseCounterPolicy(cfg.Engine.CounterPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid engine.counter_policy")
	}

	// Redis backs membership and the counter, and the log unless Cassandra is selected
	client, err := store.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer client.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	keys := store.DefaultKeys()
	messages, err := newMessageStore(cfg, client, keys)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize message store")
	}
	defer messages.Close()

	members := store.NewRedisMembershipStore(client, keys)
	counter := store.NewRedisCounterStore(client, keys)

	if cfg.Engine.ResetCounterOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := counter.Set(ctx, 0)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to reset login counter")
		}
		logger.Info().Msg("login counter reset")
	}

	// Event stream; the redis driver shares the store's connection
	var events pubsub.Publisher
	if strings.EqualFold(cfg.Events.Driver, pubsub.DriverRedis) {
		events = pubsub.NewRedisPublisherFromClient(client)
	} else {
		events, err = pubsub.NewPublisher(cfg.PubSub())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize event publisher")
		}
	}
	defer events.Close()

	// Initialize Hub
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run(ctx)

	roomEngine := engine.NewRoomEngine(messages, members, counter, wsHub, engine.Options{
		Policy:            policy,
		ChangeRoomRetries: cfg.Engine.ChangeRoomRetries,
		OpTimeout:         cfg.Engine.OpTimeout,
		Events:            events,
	})

	// Setup Gin router
	if !cfg.Log.Pretty {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHTTPHandler(roomEngine, cfg.History.RecentCount).RegisterRoutes(r)
	wsHandler := handler.NewWSHandler(wsHub, roomEngine, cfg.WebSocket)
	wsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", addr).
			Str("history_driver", cfg.History.Driver).
			Str("events_driver", cfg.Events.Driver).
			Str("counter_policy", string(policy)).
			Msg("chat-relay starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat-relay")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	// Stopping the hub closes every socket; wait for their rooms to be left
	// before the stores are closed.
	cancel()
	if err := wsHandler.Wait(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("websocket sessions did not drain")
	}

	logger.Info().Msg("chat-relay stopped")
}

func newMessageStore(cfg *config.Config, client *redis.Client, keys store.Keys) (store.MessageStore, error) {
	switch strings.ToLower(cfg.History.Driver) {
	case "", "redis":
		return store.NewRedisMessageStore(client, keys, cfg.History.MaxLength), nil
	case "cassandra":
		if cfg.History.MaxLength > 0 {
			l := pkglog.L()
			l.Warn().Int64("max_length", cfg.History.MaxLength).Msg("history.max_length is not enforced by the cassandra driver")
		}
		return store.NewCassandraMessageStore(cfg.Cassandra)
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.History.Driver)
	}
}
