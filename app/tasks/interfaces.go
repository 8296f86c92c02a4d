package tasks

// TaskSchedulerInterface defines the interface for background task
// scheduling. The scheduler fans reconcile work out to a worker pool on a
// fixed interval and retries failed tasks with backoff.
// Example usage:
//
//	scheduler := NewScheduler(registry)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
