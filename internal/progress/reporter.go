// Package progress provides the append-only, task-keyed progress log that
// provisioning runs write to and clients poll. Entries are dual-written:
// persisted to the store for polling and history, and published to the
// broker for live streaming.
package progress

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ductile-dev/ductile/internal/model"
	"github.com/ductile-dev/ductile/internal/store"
)

// Reporter creates per-task progress recorders and serves progress history.
type Reporter struct {
	store  store.Store
	broker *Broker
	logger *slog.Logger
}

// NewReporter creates a reporter over the given store and broker.
func NewReporter(s store.Store, b *Broker, logger *slog.Logger) *Reporter {
	return &Reporter{store: s, broker: b, logger: logger}
}

// Broker returns the reporter's broker for live subscription.
func (r *Reporter) Broker() *Broker {
	return r.broker
}

// History returns the full ordered progress log for a task.
func (r *Reporter) History(ctx context.Context, taskID string) ([]model.ProgressEntry, error) {
	return r.store.GetProgress(ctx, taskID)
}

// Open binds a recorder to the log for taskID. ownsTerminal declares whether
// this recorder is responsible for the task's terminal status: the top-level
// operation of a run opens with ownsTerminal true, and hands nested steps a
// Child handle so they never prematurely signal overall completion.
func (r *Reporter) Open(taskID string, ownsTerminal bool) *Recorder {
	return &Recorder{
		reporter:     r,
		taskID:       taskID,
		ownsTerminal: ownsTerminal,
		seq:          new(atomic.Int32),
	}
}

// Recorder is a handle for appending entries to one task's progress log.
// It is passed explicitly down the call chain, never held globally.
type Recorder struct {
	reporter     *Reporter
	taskID       string
	ownsTerminal bool
	seq          *atomic.Int32
}

// Child returns a handle sharing this recorder's task log and sequence but
// without terminal-status responsibility, for nested invocations.
func (rec *Recorder) Child() *Recorder {
	return &Recorder{
		reporter:     rec.reporter,
		taskID:       rec.taskID,
		ownsTerminal: false,
		seq:          rec.seq,
	}
}

// TaskID returns the task identifier this recorder writes under.
func (rec *Recorder) TaskID() string {
	return rec.taskID
}

// FinalStatus returns the status a successful final entry should carry:
// completed when this recorder owns terminal status, running when a parent
// does.
func (rec *Recorder) FinalStatus() string {
	if rec.ownsTerminal {
		return model.StatusCompleted
	}
	return model.StatusRunning
}

// Add appends an entry to the log. Appending is best-effort: persistence
// errors are logged, never propagated, so a progress write can not fail a
// run that is otherwise succeeding.
func (rec *Recorder) Add(ctx context.Context, e model.ProgressEntry) {
	e.Seq = int(rec.seq.Add(1) - 1)
	e.CreatedAt = time.Now().UTC()

	if err := rec.reporter.store.AppendProgress(ctx, rec.taskID, e); err != nil {
		rec.reporter.logger.Error("persist progress entry",
			"task_id", rec.taskID, "seq", e.Seq, "error", err)
	}
	rec.reporter.broker.Publish(rec.taskID, e)
}

// Running appends a non-terminal entry.
func (rec *Recorder) Running(ctx context.Context, message string) {
	rec.Add(ctx, model.ProgressEntry{Message: message, Status: model.StatusRunning})
}

// Fail appends a terminal failed entry carrying the step error, if any.
func (rec *Recorder) Fail(ctx context.Context, message string, err error) {
	e := model.ProgressEntry{Message: message, Status: model.StatusFailed}
	if err != nil {
		e.Error = err.Error()
	}
	rec.Add(ctx, e)
}

// Complete appends the terminal completed entry.
func (rec *Recorder) Complete(ctx context.Context, message string) {
	rec.Add(ctx, model.ProgressEntry{Message: message, Status: model.StatusCompleted})
}
