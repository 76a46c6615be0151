package supervisor

import (
	"errors"
	"fmt"
)

// OutcomeKind classifies how a supervised run ended.
type OutcomeKind string

const (
	OutcomeSucceeded     OutcomeKind = "succeeded"
	OutcomeCancelled     OutcomeKind = "cancelled"
	OutcomeConfigMissing OutcomeKind = "config_missing"
	OutcomeSpawnFailed   OutcomeKind = "spawn_failed"
	OutcomeProcessFailed OutcomeKind = "process_failed"
	OutcomeWaitFailed    OutcomeKind = "wait_failed"
)

var (
	ErrCancelled     = errors.New("force stopped by user")
	ErrConfigMissing = errors.New("recipe file not found")
	ErrSpawn         = errors.New("failed to spawn smoothie-rs")
	ErrProcess       = errors.New("smoothie-rs exited with failure")
	ErrWait          = errors.New("failed while waiting for smoothie-rs")
)

// Outcome is the result of one supervised run. Message is the human-readable
// text stored on the task; Cause holds the underlying error, if any.
type Outcome struct {
	Kind     OutcomeKind
	Message  string
	ExitCode int
	Cause    error
}

// Succeeded reports whether the process exited with status zero.
func (o Outcome) Succeeded() bool { return o.Kind == OutcomeSucceeded }

// Cancelled reports whether the run was stopped on request.
func (o Outcome) Cancelled() bool { return o.Kind == OutcomeCancelled }

// Err returns nil on success, otherwise an error wrapping the sentinel for
// the outcome kind and the underlying cause.
func (o Outcome) Err() error {
	var sentinel error
	switch o.Kind {
	case OutcomeSucceeded:
		return nil
	case OutcomeCancelled:
		sentinel = ErrCancelled
	case OutcomeConfigMissing:
		sentinel = ErrConfigMissing
	case OutcomeSpawnFailed:
		sentinel = ErrSpawn
	case OutcomeProcessFailed:
		sentinel = ErrProcess
	case OutcomeWaitFailed:
		sentinel = ErrWait
	default:
		return fmt.Errorf("unknown outcome %q: %s", o.Kind, o.Message)
	}
	if o.Cause != nil {
		return fmt.Errorf("%w: %w", sentinel, o.Cause)
	}
	return sentinel
}
