package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Y-Juice/livestream-prototype/internal/auth"
	"github.com/Y-Juice/livestream-prototype/internal/config"
	"github.com/Y-Juice/livestream-prototype/internal/events"
	"github.com/Y-Juice/livestream-prototype/internal/handler"
	"github.com/Y-Juice/livestream-prototype/internal/hub"
	"github.com/Y-Juice/livestream-prototype/internal/moderation"
	"github.com/Y-Juice/livestream-prototype/internal/presence"
	"github.com/Y-Juice/livestream-prototype/internal/reaper"
	"github.com/Y-Juice/livestream-prototype/internal/registry"
	"github.com/Y-Juice/livestream-prototype/internal/relay"
	"github.com/Y-Juice/livestream-prototype/internal/service"
	pkglog "github.com/Y-Juice/livestream-prototype/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "coordinator"})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting coordinator")

	// Optional JWT verification; nil accepts identities as-is
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	if verifier != nil {
		logger.Info().Msg("jwt identity verification enabled")
	}

	// Optional Kafka producer for stream lifecycle events
	var producer events.Producer
	if cfg.Kafka.Brokers != "" {
		p, err := events.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, stream events disabled")
		} else {
			producer = p
			defer p.Close()
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
		}
	}

	// Optional Redis presence mirror
	var publisher presence.Publisher
	if cfg.Redis.Address != "" {
		pub, err := presence.NewRedisPublisher(presence.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to redis, presence mirror disabled")
		} else {
			publisher = pub
			defer pub.Close()
			logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis presence mirror")
		}
	}

	// Initialize hub
	wsHub := hub.New(cfg.WebSocket)
	go wsHub.Run()

	// Registry, relay and the coordinator service
	classifier := moderation.NewClassifier(cfg.Moderation.Blocklist)
	reg := registry.New(registry.Limits{
		MaxStreams:       cfg.Limits.MaxStreams,
		MaxUsers:         cfg.Limits.MaxUsers,
		MaxChatMessages:  cfg.Limits.MaxChatMessages,
		MaxCoStreamers:   cfg.Limits.MaxCoStreamers,
		WarningThreshold: cfg.Moderation.WarningThreshold,
		TimeoutWindow:    cfg.Moderation.TimeoutDuration,
	}, classifier)
	rel := relay.New(wsHub)
	svc := service.New(wsHub, reg, rel, verifier, producer, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Liveness sweep and capacity enforcement
	go reaper.New(svc, cfg.Reaper.Interval).Run(ctx)

	// Initialize handler
	wsHandler := handler.NewWSHandler(wsHub, reg, svc)

	// Setup HTTP server
	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      pkglog.HTTPMiddleware(logger)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("coordinator listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down coordinator")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("coordinator stopped")
}
