package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"smoothieq/internal/logging"
	"smoothieq/internal/queue"
	"smoothieq/internal/supervisor"
)

// State is the loop's position in its state machine.
type State string

const (
	StateIdle            State = "idle"
	StateScanning        State = "scanning"
	StateDispatching     State = "dispatching"
	StateAwaitingProcess State = "awaiting_process"
	StateUpdating        State = "updating"
	StateStopped         State = "stopped"
)

// Stop reasons carried on WorkerFinished.
const (
	ReasonDrained   = "no pending tasks"
	ReasonStopped   = "stop requested"
	ReasonCancelled = "context cancelled"
)

// Runner supervises one task. *supervisor.Supervisor satisfies it.
type Runner interface {
	Run(ctx context.Context, task queue.Task, stop supervisor.ForceStopSource) supervisor.Outcome
}

// Loop is a single worker run over a store.
type Loop struct {
	store   *queue.Store
	runner  Runner
	mailbox *Mailbox
	logger  *slog.Logger
	runID   string
	state   atomic.Value
}

// NewLoop constructs a loop with a fresh run id.
func NewLoop(store *queue.Store, runner Runner, mailbox *Mailbox, logger *slog.Logger) *Loop {
	runID := uuid.NewString()
	l := &Loop{
		store:   store,
		runner:  runner,
		mailbox: mailbox,
		runID:   runID,
		logger:  logging.NewComponentLogger(logger, "worker").With(logging.String(logging.FieldRunID, runID)),
	}
	l.state.Store(StateIdle)
	return l
}

// RunID identifies this loop instance in logs and notifications.
func (l *Loop) RunID() string { return l.runID }

// State returns the loop's current state.
func (l *Loop) State() State {
	return l.state.Load().(State)
}

func (l *Loop) setState(s State) {
	l.state.Store(s)
}

// Run processes pending tasks until the queue drains, a stop is requested, or
// ctx ends. It always finishes by emitting WorkerFinished.
func (l *Loop) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithRunID(ctx, l.runID)
	l.logger.Info("worker started", logging.String(logging.FieldEventType, "worker_started"))

	reason := l.loop(ctx)

	l.setState(StateStopped)
	l.emit(Notification{Kind: WorkerFinished, Message: reason})
	l.logger.Info("worker finished",
		logging.String(logging.FieldEventType, "worker_finished"),
		logging.String("reason", reason),
	)
}

func (l *Loop) loop(ctx context.Context) string {
	for {
		l.setState(StateScanning)
		if ctx.Err() != nil {
			return ReasonCancelled
		}
		if l.store.IsStopRequested() {
			return ReasonStopped
		}

		task, ok := l.store.NextPending()
		if !ok {
			return ReasonDrained
		}

		l.setState(StateDispatching)
		if err := l.store.MarkRunning(task.ID); err != nil {
			logging.WarnWithContext(l.logger, "task could not be started; skipping", "task_start_skipped",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "task was removed or changed before dispatch"),
				logging.String(logging.FieldImpact, "task not run"),
			)
			if errors.Is(err, queue.ErrAnotherRunning) {
				return ReasonStopped
			}
			continue
		}
		l.emit(Notification{Kind: TaskStarted, TaskID: task.ID})

		l.setState(StateAwaitingProcess)
		outcome := l.runner.Run(logging.WithTaskID(ctx, task.ID), task, l.store)

		l.setState(StateUpdating)
		l.record(task, outcome)

		if ctx.Err() != nil {
			return ReasonCancelled
		}
		if l.store.IsStopRequested() {
			return ReasonStopped
		}
	}
}

func (l *Loop) record(task queue.Task, outcome supervisor.Outcome) {
	var (
		err  error
		note Notification
	)
	switch {
	case outcome.Succeeded():
		err = l.store.MarkCompleted(task.ID)
		note = Notification{Kind: TaskCompleted, TaskID: task.ID}
	case outcome.Cancelled():
		err = l.store.MarkCancelled(task.ID)
		note = Notification{Kind: TaskCancelled, TaskID: task.ID, Message: outcome.Message}
	default:
		err = l.store.MarkFailed(task.ID, outcome.Message)
		note = Notification{Kind: TaskFailed, TaskID: task.ID, Message: outcome.Message}
		l.logger.Info("task failed",
			logging.String(logging.FieldEventType, "task_failed"),
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.String("outcome", string(outcome.Kind)),
			logging.Error(outcome.Err()),
		)
	}
	if err != nil {
		logging.WarnWithContext(l.logger, "task result not recorded", "task_update_failed",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.String("outcome", string(outcome.Kind)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "queue listing may not reflect the result"),
		)
	}
	l.emit(note)
}

func (l *Loop) emit(n Notification) {
	n.RunID = l.runID
	l.mailbox.Send(n)
}
