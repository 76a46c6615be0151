package workflow

import (
	"errors"

	"smoothieq/internal/queue"
)

var (
	// ErrWorkerActive is returned when an operation needs the worker to be idle.
	ErrWorkerActive = errors.New("worker is running")
	// ErrQueueEmpty is returned by Clear when there is nothing to clear.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrNotPending is returned when removing a task that already started.
	// It is the store's sentinel so the check and the delete share one lock.
	ErrNotPending = queue.ErrNotPending
	// ErrUnsupportedFile is returned for inputs with an extension outside the allow list.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrEmptyPath is returned when a recipe or output folder selection is blank.
	ErrEmptyPath = errors.New("path must not be empty")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("workflow manager closed")
)
