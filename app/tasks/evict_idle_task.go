package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed-sync/app/engine"
)

// EvictIdleTask closes feed views whose viewer has gone quiet, the
// server-side stand-in for a UI that unmounted without closing its view.
type EvictIdleTask struct {
	Task
	registry *engine.Registry
	maxIdle  time.Duration
}

func NewEvictIdleTask(registry *engine.Registry, maxIdle time.Duration) *EvictIdleTask {
	task := NewTask(TaskTypeEvictIdle, "")
	task.MaxRetries = 0

	return &EvictIdleTask{
		Task:     task,
		registry: registry,
		maxIdle:  maxIdle,
	}
}

func (t *EvictIdleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	evicted := t.registry.EvictIdle(t.maxIdle)
	if evicted > 0 {
		slog.Info("Task completed",
			"type", "EvictIdle",
			"evicted", evicted,
			"duration", t.GetDuration())
	}

	return nil
}
