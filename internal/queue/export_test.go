package queue

import "time"

// ScanCursor exposes the scan cursor for tests.
func (s *Store) ScanCursor() int { return s.scanCursor() }

// RunningCount exposes the running task count for tests.
func (s *Store) RunningCount() int { return s.runningCount() }

// SetClock replaces the store clock for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}
