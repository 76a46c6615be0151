package worker

import (
	"context"
	"sync"
	"time"
)

// Kind identifies a worker notification.
type Kind string

const (
	TaskStarted    Kind = "task_started"
	TaskCompleted  Kind = "task_completed"
	TaskFailed     Kind = "task_failed"
	TaskCancelled  Kind = "task_cancelled"
	WorkerFinished Kind = "worker_finished"
)

// Notification is one message from the worker to its observer. Message holds
// the failure reason for TaskFailed and the stop reason for WorkerFinished.
type Notification struct {
	Seq     uint64    `json:"seq"`
	Kind    Kind      `json:"kind"`
	TaskID  int64     `json:"task_id,omitempty"`
	RunID   string    `json:"run_id,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// IsTerminal reports whether the notification resolves a task.
func (n Notification) IsTerminal() bool {
	switch n.Kind {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Mailbox is an unbounded FIFO. Send never blocks; receivers see messages in
// the order they were sent.
type Mailbox struct {
	mu      sync.Mutex
	pending []Notification
	nextSeq uint64
	ready   chan struct{}
}

// NewMailbox constructs an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Send stamps n with the next sequence number and enqueues it.
func (m *Mailbox) Send(n Notification) Notification {
	m.mu.Lock()
	m.nextSeq++
	n.Seq = m.nextSeq
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	m.pending = append(m.pending, n)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return n
}

// TryRecv pops the oldest notification without blocking.
func (m *Mailbox) TryRecv() (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return Notification{}, false
	}
	n := m.pending[0]
	m.pending[0] = Notification{}
	m.pending = m.pending[1:]
	return n, true
}

// Drain pops every queued notification in order.
func (m *Mailbox) Drain() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	out := m.pending
	m.pending = nil
	return out
}

// Recv blocks until a notification is available or ctx ends.
func (m *Mailbox) Recv(ctx context.Context) (Notification, error) {
	for {
		if n, ok := m.TryRecv(); ok {
			return n, nil
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			return Notification{}, ctx.Err()
		}
	}
}

// Len returns the number of undelivered notifications.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
