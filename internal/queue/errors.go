package queue

import "errors"

var (
	// ErrTaskNotFound is returned when no task carries the requested id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTerminalState is returned when a finished task would change status again.
	ErrTerminalState = errors.New("task already finished")
	// ErrAnotherRunning is returned when a second task would become Running.
	ErrAnotherRunning = errors.New("another task is already running")
	// ErrNotPending is returned when removing a task that already started.
	ErrNotPending = errors.New("task is not pending")
)
