package queue

import (
	"strings"
	"time"
)

// StatusKind is the lifecycle state of a task.
type StatusKind string

const (
	StatusPending   StatusKind = "pending"
	StatusRunning   StatusKind = "running"
	StatusCompleted StatusKind = "completed"
	StatusFailed    StatusKind = "failed"
	StatusCancelled StatusKind = "cancelled"
)

var allStatusKinds = []StatusKind{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// Status is a tagged lifecycle state. Reason is only set for StatusFailed.
type Status struct {
	Kind   StatusKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
}

// Pending returns the initial status of a queued task.
func Pending() Status { return Status{Kind: StatusPending} }

// Running returns the status of the task currently being processed.
func Running() Status { return Status{Kind: StatusRunning} }

// Completed returns the success status.
func Completed() Status { return Status{Kind: StatusCompleted} }

// Failed returns a failure status carrying a human-readable reason.
func Failed(reason string) Status { return Status{Kind: StatusFailed, Reason: reason} }

// Cancelled returns the status for a task stopped on user request.
func Cancelled() Status { return Status{Kind: StatusCancelled} }

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s.Kind.IsTerminal()
}

func (s Status) String() string {
	if s.Kind == StatusFailed && s.Reason != "" {
		return string(s.Kind) + ": " + s.Reason
	}
	return string(s.Kind)
}

// IsTerminal reports whether the kind is Completed, Failed, or Cancelled.
func (k StatusKind) IsTerminal() bool {
	switch k {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// AllStatusKinds returns the ordered list of known status kinds.
func AllStatusKinds() []StatusKind {
	cp := make([]StatusKind, len(allStatusKinds))
	copy(cp, allStatusKinds)
	return cp
}

// ParseStatusKind converts a string into a known StatusKind.
func ParseStatusKind(value string) (StatusKind, bool) {
	normalized := StatusKind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allStatusKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// Task is one smoothie-rs invocation.
type Task struct {
	ID         int64     `json:"id"`
	InputPath  string    `json:"input_path"`
	OutputDir  string    `json:"output_dir"`
	RecipePath string    `json:"recipe_path"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewTask builds a pending task.
func NewTask(id int64, inputPath, outputDir, recipePath string) Task {
	return Task{
		ID:         id,
		InputPath:  inputPath,
		OutputDir:  outputDir,
		RecipePath: recipePath,
		Status:     Pending(),
	}
}

// IsPending reports whether the task is waiting to run.
func (t Task) IsPending() bool { return t.Status.Kind == StatusPending }

// Flags reports the two cancellation signals.
type Flags struct {
	StopRequested      bool `json:"stop_requested"`
	ForceStopRequested bool `json:"force_stop_requested"`
}
