package progress_test

import (
	"testing"

	"github.com/ductile-dev/ductile/internal/model"
	"github.com/ductile-dev/ductile/internal/progress"
)

func entry(msg, status string) model.ProgressEntry {
	return model.ProgressEntry{Message: msg, Status: status}
}

func TestBrokerSingleSubscriber(t *testing.T) {
	b := progress.NewBroker()
	ch, unsub := b.Subscribe("t1")
	defer unsub()

	messages := []string{"started", "cloned git repo", "created venv"}
	for _, m := range messages {
		b.Publish("t1", entry(m, model.StatusRunning))
	}
	b.Close("t1")

	var got []model.ProgressEntry
	for e := range ch {
		got = append(got, e)
	}

	if len(got) != len(messages) {
		t.Fatalf("got %d entries, want %d", len(got), len(messages))
	}
	for i, e := range got {
		if e.Message != messages[i] {
			t.Errorf("entry[%d].Message = %q, want %q", i, e.Message, messages[i])
		}
	}
}

func TestBrokerMultipleSubscribers(t *testing.T) {
	b := progress.NewBroker()
	ch1, unsub1 := b.Subscribe("t1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("t1")
	defer unsub2()

	b.Publish("t1", entry("started", model.StatusRunning))
	b.Close("t1")

	var got1, got2 []model.ProgressEntry
	for e := range ch1 {
		got1 = append(got1, e)
	}
	for e := range ch2 {
		got2 = append(got2, e)
	}

	if len(got1) != 1 || got1[0].Message != "started" {
		t.Errorf("subscriber 1 got %v, want [started]", got1)
	}
	if len(got2) != 1 || got2[0].Message != "started" {
		t.Errorf("subscriber 2 got %v, want [started]", got2)
	}
}

func TestBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := progress.NewBroker()
	b.Publish("t1", entry("early", model.StatusRunning))
	b.Close("t1")

	ch, unsub := b.Subscribe("t1")
	defer unsub()

	_, ok := <-ch
	if ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := progress.NewBroker()
	ch, unsub := b.Subscribe("t1")
	unsub()

	b.Publish("t1", entry("after unsub", model.StatusRunning))
	b.Close("t1")

	select {
	case e, ok := <-ch:
		if ok {
			t.Errorf("got unexpected entry %q after unsubscribe", e.Message)
		}
	default:
		// Nothing delivered, as expected.
	}
}

func TestBrokerKnown(t *testing.T) {
	b := progress.NewBroker()

	if b.Known("t1") {
		t.Error("Known before Open should be false")
	}

	b.Open("t1")
	if !b.Known("t1") {
		t.Error("Known after Open should be true")
	}

	b.Close("t1")
	if !b.Known("t1") {
		t.Error("Known after Close should remain true (closed marker)")
	}
}

func TestBrokerPublishToUnknownTaskIsNoop(t *testing.T) {
	b := progress.NewBroker()
	// Should not panic.
	b.Publish("nonexistent", entry("x", model.StatusRunning))
	b.Close("nonexistent")
}
