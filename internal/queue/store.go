package queue

import (
	"fmt"
	"sync"
	"time"
)

// Store is the mutex-guarded task list. The zero value is ready to use.
type Store struct {
	mu        sync.Mutex
	tasks     []Task
	nextScan  int
	stop      bool
	forceStop bool
	now       func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Add appends a task. Fields are taken as supplied by the caller.
func (s *Store) Add(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// NextPending returns a copy of the first pending task at or after the scan
// cursor and moves the cursor to it. When none remains the cursor is parked at
// the end of the list.
func (s *Store) NextPending() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextScan > len(s.tasks) {
		s.nextScan = len(s.tasks)
	}
	for i := s.nextScan; i < len(s.tasks); i++ {
		if s.tasks[i].Status.Kind == StatusPending {
			s.nextScan = i
			return s.tasks[i], true
		}
	}
	s.nextScan = len(s.tasks)
	return Task{}, false
}

// MarkRunning moves a task to Running and clears the force-stop flag in the
// same critical section. Only one task may be Running at a time.
func (s *Store) MarkRunning(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.lookupMutable(id)
	if err != nil {
		return err
	}
	for i := range s.tasks {
		if i != idx && s.tasks[i].Status.Kind == StatusRunning {
			return fmt.Errorf("mark task %d running: %w (task %d)", id, ErrAnotherRunning, s.tasks[i].ID)
		}
	}
	s.tasks[idx].Status = Running()
	s.tasks[idx].StartedAt = s.clock()
	s.forceStop = false
	return nil
}

// MarkCompleted records a successful run.
func (s *Store) MarkCompleted(id int64) error {
	return s.finish(id, Completed())
}

// MarkFailed records a failed run with its reason.
func (s *Store) MarkFailed(id int64, reason string) error {
	return s.finish(id, Failed(reason))
}

// MarkCancelled records a run stopped on user request.
func (s *Store) MarkCancelled(id int64) error {
	return s.finish(id, Cancelled())
}

func (s *Store) finish(id int64, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.lookupMutable(id)
	if err != nil {
		return err
	}
	s.tasks[idx].Status = status
	s.tasks[idx].FinishedAt = s.clock()
	if s.nextScan == idx {
		s.nextScan = idx + 1
	}
	return nil
}

// lookupMutable must be called with mu held.
func (s *Store) lookupMutable(id int64) (int, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return -1, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	if s.tasks[idx].Status.IsTerminal() {
		return -1, fmt.Errorf("task %d is %s: %w", id, s.tasks[idx].Status.Kind, ErrTerminalState)
	}
	return idx, nil
}

func (s *Store) indexOf(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Remove deletes a pending task and resets the scan cursor. Tasks that have
// started are refused with ErrNotPending.
func (s *Store) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("remove task %d: %w", id, ErrTaskNotFound)
	}
	if kind := s.tasks[idx].Status.Kind; kind != StatusPending {
		return fmt.Errorf("remove task %d (%s): %w", id, kind, ErrNotPending)
	}
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.nextScan = 0
	return nil
}

// ClearAll empties the queue and resets the cursor and both flags.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = nil
	s.nextScan = 0
	s.stop = false
	s.forceStop = false
}

// RequestStop asks the worker to finish after the current task.
func (s *Store) RequestStop() {
	s.mu.Lock()
	s.stop = true
	s.mu.Unlock()
}

// RequestForceStop asks the supervisor to kill the running process.
func (s *Store) RequestForceStop() {
	s.mu.Lock()
	s.forceStop = true
	s.mu.Unlock()
}

// ClearStop withdraws a pending stop request.
func (s *Store) ClearStop() {
	s.mu.Lock()
	s.stop = false
	s.mu.Unlock()
}

// ClearForceStop withdraws a pending force-stop request.
func (s *Store) ClearForceStop() {
	s.mu.Lock()
	s.forceStop = false
	s.mu.Unlock()
}

// IsStopRequested reports whether a stop was requested.
func (s *Store) IsStopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

// IsForceStopRequested reports whether a force stop was requested.
func (s *Store) IsForceStopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forceStop
}

// Flags returns both cancellation signals in one read.
func (s *Store) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Flags{StopRequested: s.stop, ForceStopRequested: s.forceStop}
}

// UpdatePendingRecipe reassigns the recipe of every pending task and returns
// how many were changed.
func (s *Store) UpdatePendingRecipe(path string) int {
	return s.updatePending(func(t *Task) { t.RecipePath = path })
}

// UpdatePendingOutputDir reassigns the output directory of every pending task
// and returns how many were changed.
func (s *Store) UpdatePendingOutputDir(path string) int {
	return s.updatePending(func(t *Task) { t.OutputDir = path })
}

func (s *Store) updatePending(apply func(*Task)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for i := range s.tasks {
		if s.tasks[i].Status.Kind != StatusPending {
			continue
		}
		apply(&s.tasks[i])
		updated++
	}
	return updated
}

// Snapshot returns a copy of every task in scheduling order.
func (s *Store) Snapshot() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id int64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return Task{}, false
	}
	return s.tasks[idx], true
}

// Len returns the number of tasks in any status.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stats returns task counts keyed by status kind. Every known kind is present.
func (s *Store) Stats() map[StatusKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[StatusKind]int, len(allStatusKinds))
	for _, kind := range allStatusKinds {
		stats[kind] = 0
	}
	for _, task := range s.tasks {
		stats[task.Status.Kind]++
	}
	return stats
}

// runningCount returns how many tasks are Running. It is never above one.
func (s *Store) runningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, task := range s.tasks {
		if task.Status.Kind == StatusRunning {
			count++
		}
	}
	return count
}

// scanCursor is exposed to tests through export_test.go.
func (s *Store) scanCursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextScan
}
