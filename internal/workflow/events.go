package workflow

import (
	"context"
	"sync"

	"smoothieq/internal/worker"
)

// eventLog retains the most recent worker notifications so clients can poll
// with a sequence cursor. Sequence numbers come from the mailbox.
type eventLog struct {
	mu       sync.Mutex
	capacity int
	entries  []worker.Notification
	changed  chan struct{}
	subs     map[int]chan worker.Notification
	nextSub  int
	closed   bool
}

func newEventLog(capacity int) *eventLog {
	if capacity <= 0 {
		capacity = defaultEventCapacity
	}
	return &eventLog{
		capacity: capacity,
		changed:  make(chan struct{}),
		subs:     make(map[int]chan worker.Notification),
	}
}

func (e *eventLog) append(n worker.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.entries = append(e.entries, n)
	if over := len(e.entries) - e.capacity; over > 0 {
		e.entries = append(e.entries[:0:0], e.entries[over:]...)
	}
	close(e.changed)
	e.changed = make(chan struct{})
	for _, ch := range e.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// since returns retained entries with Seq greater than after, plus the channel
// that is closed on the next append.
func (e *eventLog) since(after uint64) ([]worker.Notification, <-chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []worker.Notification
	for _, n := range e.entries {
		if n.Seq > after {
			out = append(out, n)
		}
	}
	return out, e.changed
}

func (e *eventLog) lastSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.entries) == 0 {
		return 0
	}
	return e.entries[len(e.entries)-1].Seq
}

func (e *eventLog) subscribe(buffer int) (<-chan worker.Notification, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan worker.Notification, buffer)
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(sub)
			}
		})
	}
}

func (e *eventLog) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *eventLog) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.changed)
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

// Events returns retained notifications newer than after, oldest first.
func (m *Manager) Events(after uint64) []worker.Notification {
	out, _ := m.events.since(after)
	return out
}

// WaitEvents blocks until at least one notification newer than after is
// available or ctx ends. A context error is returned only when nothing arrived.
func (m *Manager) WaitEvents(ctx context.Context, after uint64) ([]worker.Notification, error) {
	for {
		out, changed := m.events.since(after)
		if len(out) > 0 {
			return out, nil
		}
		if m.events.isClosed() {
			return nil, ErrClosed
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// Subscribe streams notifications as the pump processes them. Slow
// subscribers miss messages instead of blocking the pump; the event log
// remains the source for catching up. Call the returned func to unsubscribe.
func (m *Manager) Subscribe() (<-chan worker.Notification, func()) {
	return m.events.subscribe(64)
}
