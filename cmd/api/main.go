package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/imagebinding/internal/api"
	"github.com/dunamismax/imagebinding/internal/config"
	"github.com/dunamismax/imagebinding/internal/engine"
	"github.com/dunamismax/imagebinding/internal/pipeline"
	"github.com/dunamismax/imagebinding/internal/ratelimit"
	"github.com/dunamismax/imagebinding/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	logger := telemetry.NewLogger(cfg.Env, cfg.LogLevel).With().Str("service", "api").Logger()

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Env,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	background, err := engine.ParseBackground(cfg.Engine.Background)
	if err != nil {
		logger.Fatal().Err(err).Str("value", cfg.Engine.Background).Msg("invalid IMAGES_BACKGROUND")
	}
	engineOpts := engine.Options{
		Background: background,
		Quality:    cfg.Engine.JPEGQuality,
		CacheMB:    cfg.Engine.VipsCacheMB,
		MaxPixels:  cfg.Engine.MaxOutputPixels,
	}
	if err := engine.Startup(engineOpts); err != nil {
		logger.Fatal().Err(err).Msg("image engine startup failed")
	}
	defer engine.Shutdown()

	eng, err := engine.New(engineOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("image engine init failed")
	}
	processor, err := pipeline.NewProcessor(eng)
	if err != nil {
		logger.Fatal().Err(err).Msg("processor init failed")
	}

	opts := api.Options{
		MaxUploadBytes:         cfg.API.MaxUploadBytes,
		MaxActiveRequests:      cfg.API.MaxActiveRequests,
		RateLimitSubjectHeader: cfg.RateLimit.SubjectHeader,
	}
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer closeRedis(logger, redisClient)

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Window:   cfg.RateLimit.Window,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("rate limiter init failed")
		}
		opts.RateLimiter = limiter
		logger.Info().
			Int("capacity", cfg.RateLimit.Capacity).
			Dur("window", cfg.RateLimit.Window).
			Msg("rate limiting enabled")
	}

	app := api.NewServer(logger, processor, opts)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.API.Addr).
			Str("engine", processor.EngineName()).
			Int("max_active_requests", cfg.API.MaxActiveRequests).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-serveErr:
		logger.Error().Err(err).Msg("server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func closeRedis(logger zerolog.Logger, client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.Error().Err(err).Msg("redis client close failed")
	}
}
