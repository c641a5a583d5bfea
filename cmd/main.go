package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/studyhive/realtime-service/internal/config"
	"github.com/studyhive/realtime-service/internal/handler"
	"github.com/studyhive/realtime-service/internal/history"
	"github.com/studyhive/realtime-service/internal/hub"
	"github.com/studyhive/realtime-service/internal/presence"
	"github.com/studyhive/realtime-service/internal/pubsub"
	"github.com/studyhive/realtime-service/internal/relay"
	"github.com/studyhive/realtime-service/internal/repository"
	"github.com/studyhive/realtime-service/internal/session"
	"github.com/studyhive/realtime-service/internal/store"
	"github.com/studyhive/realtime-service/pkg/jwt"
	pkglog "github.com/studyhive/realtime-service/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "realtime-service"})
	logger := pkglog.L()

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("instance_id", instanceID).
		Msg("starting realtime-service")

	// Session store: Redis in production, memory for local development.
	var sessionStore store.SessionStore
	switch cfg.Store.Backend {
	case "memory":
		sessionStore = store.NewMemoryStore(cfg.Session.TTL)
		logger.Warn().Msg("using in-memory session store, sessions are not shared across instances")
	default:
		sessionStore, err = store.NewRedisStore(store.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Session.TTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create redis session store")
		}
	}
	defer sessionStore.Close()

	// Shared Redis client for fanout publishing and the history cache.
	// A second client handles Subscribe: a connection in subscriber mode
	// cannot run other commands.
	var redisShared, redisSub *redis.Client
	if cfg.Store.Backend != "memory" {
		redisShared = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisShared.Close()

		redisSub = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisSub.Close()
	}

	// Cassandra for chat persistence, memberships, and user profiles.
	cassandraSession, err := repository.NewCassandraSession(repository.CassandraConfig{
		Hosts:          cfg.Cassandra.Hosts,
		Keyspace:       cfg.Cassandra.Keyspace,
		Consistency:    cfg.Cassandra.Consistency,
		ConnectTimeout: cfg.Cassandra.ConnectTimeout,
		Timeout:        cfg.Cassandra.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to cassandra")
	}
	defer cassandraSession.Close()

	messageRepo := repository.NewCassandraMessageRepository(cassandraSession)
	membershipRepo := repository.NewCassandraMembershipRepository(cassandraSession)
	userDirectory := repository.NewCassandraUserDirectory(cassandraSession)

	// Session manager
	sessions := session.NewManager(sessionStore)

	// Hub
	h := hub.NewHub()
	go h.Run()

	// Fanout broadcaster: local hub delivery plus cross-instance pub/sub.
	fanout := pubsub.NewFanout(h, redisShared, cfg.Redis.PubSubChannel, instanceID)

	// Presence tracker
	tracker := presence.NewTracker(sessionStore, userDirectory, fanout, presence.Config{
		MaxParticipants: int64(cfg.Room.MaxParticipants),
	})

	// Relay
	rly := relay.NewRelay(tracker, sessions, messageRepo, membershipRepo, userDirectory, fanout)

	// History service with Redis page cache
	var pageCache history.PageCache
	if redisShared != nil {
		pageCache = history.NewRedisPageCache(redisShared, cfg.History.CachePrefix)
	}
	hist := history.NewService(messageRepo, pageCache, cfg.History.CacheTTL)

	// JWT manager
	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessDuration)

	ctx, cancel := context.WithCancel(context.Background())

	// Disconnect cascade: session events drive presence cleanup.
	go tracker.Run(ctx, sessions.Events())

	// Cross-instance fanout subscriber
	var subscriber *pubsub.Subscriber
	if redisSub != nil {
		subscriber = pubsub.NewSubscriber(redisSub, cfg.Redis.PubSubChannel, h, instanceID)
		go subscriber.Run(ctx)
	}

	// Handlers and routes
	wsHandler := handler.NewWSHandler(h, sessions, tracker, rly, hist, tokens, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(sessions, tracker, hist, cfg.Session)
	iceHandler := handler.NewICEHandler(cfg.WebRTC)

	router := mux.NewRouter()
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)
	iceHandler.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      pkglog.HTTPMiddleware(logger)(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("realtime-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down realtime-service")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel() // 1. stop subscriber and the disconnect cascade

		if subscriber != nil {
			<-subscriber.Done() // 2. wait for pub/sub goroutine to exit
		}

		h.Stop() // 3. close all WS clients, stop Hub.Run()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("realtime-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
