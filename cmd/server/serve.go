package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hperssn/chefmentor/internal/config"
	"github.com/hperssn/chefmentor/internal/cooking"
	"github.com/hperssn/chefmentor/internal/guidance"
	httpapi "github.com/hperssn/chefmentor/internal/http"
	"github.com/hperssn/chefmentor/internal/log"
	"github.com/hperssn/chefmentor/internal/prefetch"
	"github.com/hperssn/chefmentor/internal/resilience"
	"github.com/hperssn/chefmentor/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and prefetch workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "chefmentor"})
	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("server")

	repo, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	provider, closeProvider := buildProvider(cfg, logger)
	defer closeProvider()

	scheduler := prefetch.NewScheduler(prefetch.Config{
		Workers:     cfg.Prefetch.Workers,
		QueueSize:   cfg.Prefetch.QueueSize,
		TaskTimeout: cfg.Prefetch.TaskTimeout,
	})
	engine := cooking.NewEngine(repo, provider, scheduler)
	scheduler.Start(engine.Prefetch)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: httpapi.NewRouter(engine, httpapi.Options{
			AllowAnonymous: cfg.AllowAnonymous,
			RateLimit:      cfg.RateLimit,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("db_driver", cfg.Database.Driver).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		httpErr := srv.Shutdown(shutdownCtx)
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("prefetch queue not drained")
		}
		return httpErr
	})

	return g.Wait()
}

// buildProvider assembles the guidance chain. Without an API key every step
// gets the fallback tip and no upstream is contacted.
func buildProvider(cfg config.Config, logger zerolog.Logger) (guidance.Provider, func()) {
	g := cfg.Guidance
	if g.APIKey == "" {
		logger.Warn().Msg("no guidance API key configured, serving static guidance")
		return guidance.Static(cooking.FallbackGuidance), func() {}
	}

	upstream := guidance.NewOpenAIProvider(guidance.OpenAIConfig{
		APIKey:            g.APIKey,
		BaseURL:           g.BaseURL,
		Model:             g.Model,
		MaxTokens:         g.MaxTokens,
		Temperature:       float32(g.Temperature),
		Timeout:           g.Timeout,
		RequestsPerSecond: g.RequestsPerSecond,
	})

	var provider guidance.Provider = guidance.NewInstrumented("openai",
		guidance.NewBreaker(upstream, resilience.NewCircuitBreaker("guidance", g.BreakerThreshold, g.BreakerReset)))

	if cfg.Redis.Addr == "" {
		return provider, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("guidance memo enabled")
	memo := guidance.NewMemo(client, provider, upstream.Model(), cfg.Redis.TTL, log.WithComponent("memo"))
	return memo, func() { _ = client.Close() }
}
