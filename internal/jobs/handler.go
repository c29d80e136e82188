package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Preloader warms cache entries for the named entity types
type Preloader interface {
	Preload(ctx context.Context, entities ...string)
}

// NewPreloadHandler returns the cache:preload task handler. Preload failures
// are logged by the preloader and never retried; only an unreadable payload
// fails the task.
func NewPreloadHandler(p Preloader, log zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PreloadPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			log.Error().Err(err).Str("task", t.Type()).Msg("bad payload")
			return fmt.Errorf("unmarshal preload payload: %v: %w", err, asynq.SkipRetry)
		}
		if len(payload.Entities) == 0 {
			log.Debug().Msg("preload task with no entities")
			return nil
		}

		start := time.Now()
		p.Preload(ctx, payload.Entities...)
		log.Info().
			Strs("entities", payload.Entities).
			Dur("duration", time.Since(start)).
			Msg("preload task done")
		return nil
	}
}

// NewServeMux registers every task handler the API process serves
func NewServeMux(p Preloader, log zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TaskPreloadCache, NewPreloadHandler(p, log))
	return mux
}
