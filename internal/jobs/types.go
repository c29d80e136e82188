package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskPreloadCache = "cache:preload"

type PreloadPayload struct {
	Entities []string `json:"entities"`
}

// NewPreloadTask builds a cache:preload task for the named entity types
func NewPreloadTask(entities []string, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(PreloadPayload{Entities: entities})
	if err != nil {
		return nil, fmt.Errorf("marshal preload payload: %w", err)
	}
	return asynq.NewTask(TaskPreloadCache, payload, opts...), nil
}
