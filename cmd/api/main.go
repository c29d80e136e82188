// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/storefront/internal/config"
	"github.com/briangreenhill/storefront/internal/http/routes"
	"github.com/briangreenhill/storefront/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Data source
	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("data_source", cfg.DataSource).Msg("open data source")
	}
	defer closeSrc()

	a := newApp(cfg, src, logger)

	// Background jobs: this process consumes its own preload queue, since
	// only it can warm its cache
	var enq routes.Enqueuer
	if cfg.HasJobs() {
		redis := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

		client := asynq.NewClient(redis)
		enq = client
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close asynq client")
			}
		}()

		worker := asynq.NewServer(redis, asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{cfg.Preload.Queue: 1},
			Logger:      jobs.NewLogger(logger),
		})
		if err := worker.Start(jobs.NewServeMux(a.admin, logger)); err != nil {
			logger.Fatal().Err(err).Msg("start asynq server")
		}
		defer worker.Shutdown()
		logger.Info().Str("queue", cfg.Preload.Queue).Msg("consuming preload tasks")
	}

	if cfg.Preload.OnStart {
		if err := a.admin.Check(cfg.Preload.Entities...); err != nil {
			logger.Warn().Err(err).Msg("startup preload list contains unknown entities")
		}
		go a.admin.Preload(ctx, cfg.Preload.Entities...)
	}

	// Router / server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler(enq),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("data_source", cfg.DataSource).Msg("starting storefront api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
