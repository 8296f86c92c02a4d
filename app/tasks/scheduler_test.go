package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// stubTask counts executions and fails the first failures attempts.
type stubTask struct {
	Task
	executions atomic.Int32
	failures   int32
}

func newStubTask(maxRetries int, failures int32) *stubTask {
	task := NewTask(TaskTypeReconcileFeed, "viewer-1/for-you")
	task.MaxRetries = maxRetries

	return &stubTask{Task: task, failures: failures}
}

func (t *stubTask) Execute(ctx context.Context) error {
	n := t.executions.Add(1)
	if n <= t.failures {
		return errors.New("transient failure")
	}
	return nil
}

func newTestScheduler(queueSize int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		interval:    time.Hour,
		maxIdle:     time.Hour,
		workerCount: 2,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func TestTaskBase(t *testing.T) {
	task := NewTask(TaskTypeReconcileFeed, "viewer-1/for-you")

	if task.GetID() == "" {
		t.Error("Expected generated task id")
	}
	if task.GetType() != TaskTypeReconcileFeed {
		t.Errorf("Unexpected type %s", task.GetType())
	}
	if task.GetViewKey() != "viewer-1/for-you" {
		t.Errorf("Unexpected view key %s", task.GetViewKey())
	}
	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}

	if !task.CanRetry() {
		t.Error("Expected fresh task to be retryable")
	}
	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected retries exhausted")
	}
}

func TestScheduler_ExecutesEnqueuedTasks(t *testing.T) {
	s := newTestScheduler(4)
	task := newStubTask(0, 0)

	s.Start()
	if err := s.EnqueueTask(task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for task.executions.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("Task never executed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()
}

func TestScheduler_RetriesFailedTask(t *testing.T) {
	s := newTestScheduler(4)
	task := newStubTask(1, 1)

	s.Start()
	defer s.Stop()

	s.EnqueueTask(task)

	// First attempt fails, the retry lands after the 1s backoff
	deadline := time.After(4 * time.Second)
	for task.executions.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("Expected 2 executions, got %d", task.executions.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestScheduler_StopWithPendingRetry(t *testing.T) {
	s := newTestScheduler(4)
	task := newStubTask(1, 2)

	s.Start()
	s.EnqueueTask(task)

	// Wait for the first attempt to fail and schedule its retry
	deadline := time.After(2 * time.Second)
	for task.executions.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("Task never executed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Stop drains the retry goroutine before closing the queue; a
	// re-enqueue racing the close would panic on a closed channel.
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return with a retry pending")
	}
}

func TestScheduler_QueueFull(t *testing.T) {
	s := newTestScheduler(1)
	// Workers not started: the queue fills up

	if err := s.EnqueueTask(newStubTask(0, 0)); err != nil {
		t.Fatalf("First enqueue failed: %v", err)
	}
	if err := s.EnqueueTask(newStubTask(0, 0)); err == nil {
		t.Error("Expected error when the queue is full")
	}

	s.cancel()
}
