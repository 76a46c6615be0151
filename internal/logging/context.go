package logging

import (
	"context"
	"log/slog"
)

// Structured field names shared across smoothieq.
const (
	FieldComponent = "component"
	// FieldTaskID is the queue task identifier.
	FieldTaskID = "task_id"
	// FieldRunID identifies one worker run, from start until it finishes.
	FieldRunID = "run_id"
	// FieldEventType is a machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint is a short operator-facing next step.
	FieldErrorHint = "error_hint"
	// FieldProgressPercent is the percentage parsed from smoothie-rs output.
	FieldProgressPercent = "progress_percent"
)

type taskIDKey struct{}

type runIDKey struct{}

// WithTaskID stores the task identifier on the context.
func WithTaskID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// WithRunID stores the worker run identifier on the context.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, id)
}

// WithContext returns logger extended with the task and run identifiers
// carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if id, ok := ctx.Value(taskIDKey{}).(int64); ok {
		args = append(args, slog.Int64(FieldTaskID, id))
	}
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		args = append(args, slog.String(FieldRunID, id))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
