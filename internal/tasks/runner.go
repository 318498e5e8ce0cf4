// Package tasks provides the asynchronous dispatch substrate: a unit of work
// is submitted with a freshly minted task id, executed exactly once in a
// background goroutine, and observed through the progress log under that id.
package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ductile-dev/ductile/internal/model"
	"github.com/ductile-dev/ductile/internal/progress"
)

// Job is a unit of background work. The task id correlates the job with its
// progress log. A returned error is logged only; the progress log is the
// observable outcome of a failed run.
type Job func(ctx context.Context, taskID string) error

// Runner executes jobs out-of-band from the request path.
type Runner struct {
	broker *progress.Broker
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a task runner publishing lifecycle signals to broker.
func NewRunner(broker *progress.Broker, logger *slog.Logger) *Runner {
	return &Runner{broker: broker, logger: logger}
}

// Submit dispatches a job and returns its task id immediately. The broker
// topic is opened before dispatch so the task is observable from the moment
// the id is handed to the caller, and closed when the job finishes.
func (r *Runner) Submit(name string, job Job) string {
	taskID := model.NewID()
	r.broker.Open(taskID)

	r.wg.Go(func() {
		defer r.broker.Close(taskID)

		r.logger.Info("task started", "task", name, "task_id", taskID)
		if err := job(context.Background(), taskID); err != nil {
			r.logger.Error("task failed", "task", name, "task_id", taskID, "error", err)
			return
		}
		r.logger.Info("task finished", "task", name, "task_id", taskID)
	})

	return taskID
}

// Wait blocks until all in-flight jobs complete.
func (r *Runner) Wait() {
	r.wg.Wait()
}
