package tasks_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ductile-dev/ductile/internal/progress"
	"github.com/ductile-dev/ductile/internal/tasks"
)

func newTestRunner() (*tasks.Runner, *progress.Broker) {
	broker := progress.NewBroker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return tasks.NewRunner(broker, logger), broker
}

func TestSubmitReturnsTaskIDImmediately(t *testing.T) {
	r, broker := newTestRunner()

	started := make(chan struct{})
	release := make(chan struct{})
	taskID := r.Submit("test", func(ctx context.Context, id string) error {
		close(started)
		<-release
		return nil
	})

	if len(taskID) != 26 {
		t.Errorf("task id length = %d, want 26 (ULID)", len(taskID))
	}
	if !broker.Known(taskID) {
		t.Error("task should be known to broker before job finishes")
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}
	close(release)
	r.Wait()
}

func TestSubmitRunsJobWithItsTaskID(t *testing.T) {
	r, _ := newTestRunner()

	got := make(chan string, 1)
	taskID := r.Submit("test", func(ctx context.Context, id string) error {
		got <- id
		return nil
	})
	r.Wait()

	if id := <-got; id != taskID {
		t.Errorf("job saw task id %q, want %q", id, taskID)
	}
}

func TestSubmitClosesTopicWhenJobFinishes(t *testing.T) {
	r, broker := newTestRunner()

	taskID := r.Submit("test", func(ctx context.Context, id string) error {
		return nil
	})
	r.Wait()

	// Topic must be closed: a late subscriber gets a closed channel.
	ch, unsub := broker.Subscribe(taskID)
	defer unsub()
	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed after job finishes")
	}
}

func TestSubmitJobErrorDoesNotPanic(t *testing.T) {
	r, broker := newTestRunner()

	taskID := r.Submit("test", func(ctx context.Context, id string) error {
		return errors.New("boom")
	})
	r.Wait()

	if !broker.Known(taskID) {
		t.Error("failed task should still be known to broker")
	}
}
