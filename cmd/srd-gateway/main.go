package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/srd-gateway/internal/api"
	"github.com/Sternrassler/srd-gateway/internal/config"
	"github.com/Sternrassler/srd-gateway/pkg/cache"
	"github.com/Sternrassler/srd-gateway/pkg/client"
	"github.com/Sternrassler/srd-gateway/pkg/gateway"
	"github.com/Sternrassler/srd-gateway/pkg/logging"
	"github.com/Sternrassler/srd-gateway/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redisPingTimeout = 3 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Addr()).Msg("Failed to listen")
	}

	if err := run(ctx, cfg, listener, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves the gateway on listener until ctx is cancelled, then shuts
// down gracefully.
func run(ctx context.Context, cfg config.Config, listener net.Listener, logger zerolog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("Trace provider shutdown failed")
		}
	}()

	store, closeStore := newStore(ctx, cfg, logger)
	defer closeStore()

	upstream, err := client.New(cfg.ClientConfig())
	if err != nil {
		return err
	}

	manager := cache.NewManager(store, cache.WithDefaultTTL(cfg.CacheTTL))
	gw := gateway.New(manager, upstream, cfg.GatewayConfig())

	server := &http.Server{
		Handler: api.NewServer(gw, api.Options{
			Version:            config.Version,
			ServiceName:        cfg.Telemetry.ServiceName,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:             logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", listener.Addr().String()).
			Str("upstream", cfg.BaseURL).
			Str("cache", manager.Layer()).
			Str("version", config.Version).
			Msg("Starting SRD gateway")
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}

// newStore returns the configured cache store. An unreachable Redis falls
// back to the in-memory store.
func newStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (cache.Store, func()) {
	if cfg.CacheBackend != config.BackendRedis {
		return cache.NewMemoryStore(), func() {}
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid Redis options - using in-memory cache")
		return cache.NewMemoryStore(), func() {}
	}

	redisClient := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unreachable - using in-memory cache")
		redisClient.Close()
		return cache.NewMemoryStore(), func() {}
	}

	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return cache.NewRedisStore(redisClient), func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
