package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/feed-sync/app/engine"
)

// ReconcileFeedTask runs one polling pass for one open feed view, picking
// up rows the change-notification channel may have missed. Reconciliation
// is best-effort: the retry budget is small and a final failure is only
// logged, never surfaced to the view.
type ReconcileFeedTask struct {
	Task
	feed *engine.Feed
}

func NewReconcileFeedTask(viewKey string, feed *engine.Feed) *ReconcileFeedTask {
	task := NewTask(TaskTypeReconcileFeed, viewKey)
	task.MaxRetries = 1

	return &ReconcileFeedTask{
		Task: task,
		feed: feed,
	}
}

func (t *ReconcileFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.feed.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to reconcile feed: %w", err)
	}

	slog.Debug("Task completed",
		"type", "ReconcileFeed",
		"view", t.ViewKey,
		"duration", t.GetDuration())

	return nil
}
