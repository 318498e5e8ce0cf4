package progress

import (
	"sync"

	"github.com/ductile-dev/ductile/internal/model"
)

// subscriberBufferSize is the channel buffer for each progress subscriber.
// Entries are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Broker manages per-task progress streaming to subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a task finishes) receive a closed channel instead of
// blocking forever. Each marker is a few bytes, which is acceptable for the
// expected task volume.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	subs   map[int]chan model.ProgressEntry
	nextID int
	closed bool
}

// NewBroker creates a new progress broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*topic),
	}
}

// Open ensures a topic exists for the given task. The task runner calls this
// before dispatch so that Known reports the task from the moment its id is
// handed to a caller.
func (b *Broker) Open(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.topics[taskID]; !ok {
		b.topics[taskID] = &topic{subs: make(map[int]chan model.ProgressEntry)}
	}
}

// Known reports whether the broker has seen the given task, finished or not.
func (b *Broker) Known(taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.topics[taskID]
	return ok
}

// Subscribe returns a channel that receives progress entries for the given
// task and an unsubscribe function. If the task has already finished (Close
// was called), the returned channel is immediately closed.
func (b *Broker) Subscribe(taskID string) (<-chan model.ProgressEntry, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskID]
	if !ok {
		t = &topic{subs: make(map[int]chan model.ProgressEntry)}
		b.topics[taskID] = t
	}

	ch := make(chan model.ProgressEntry, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a progress entry to all subscribers of the given task.
// Entries are dropped for subscribers whose buffers are full.
func (b *Broker) Publish(taskID string, e model.ProgressEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- e:
		default:
			// Drop for slow subscribers to avoid blocking the run.
		}
	}
}

// Close signals that no more entries will be published for the given task.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *Broker) Close(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskID]
	if !ok {
		// Create a closed marker so late subscribers get a closed channel.
		b.topics[taskID] = &topic{subs: make(map[int]chan model.ProgressEntry), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
