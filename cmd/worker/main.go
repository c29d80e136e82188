// cmd/worker/main.go
package main

import (
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/storefront/internal/config"
	"github.com/briangreenhill/storefront/internal/jobs"
)

// The worker schedules periodic cache preloads. The tasks are consumed by
// the API processes, each from its own queue, because the cache lives in
// their memory.
func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "worker").Logger().Level(cfg.Level())

	if !cfg.HasJobs() {
		logger.Fatal().Msg("REDIS_ADDR is required")
	}

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, &asynq.SchedulerOpts{
		Logger: jobs.NewLogger(logger),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("enqueue preload failed")
				return
			}
			logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("preload enqueued")
		},
	})

	spec := "@every " + cfg.Preload.Interval.String()
	for _, queue := range cfg.PreloadQueues() {
		task, err := jobs.NewPreloadTask(cfg.Preload.Entities)
		if err != nil {
			logger.Fatal().Err(err).Msg("build preload task")
		}
		entryID, err := scheduler.Register(spec, task,
			asynq.Queue(queue),
			asynq.MaxRetry(0),
			asynq.Timeout(cfg.Preload.Interval),
		)
		if err != nil {
			logger.Fatal().Err(err).Str("queue", queue).Msg("register preload")
		}
		logger.Info().
			Str("entry_id", entryID).
			Str("queue", queue).
			Str("spec", spec).
			Strs("entities", cfg.Preload.Entities).
			Msg("preload scheduled")
	}

	// Run blocks until SIGTERM or SIGINT
	if err := scheduler.Run(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
}
