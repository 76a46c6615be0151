package workflow

import (
	"context"
	"errors"
	"time"

	"smoothieq/internal/history"
	"smoothieq/internal/logging"
	"smoothieq/internal/notifications"
	"smoothieq/internal/queue"
	"smoothieq/internal/worker"
)

// runTally accumulates terminal results for one worker run. Only the pump
// goroutine touches it.
type runTally struct {
	runID     string
	started   time.Time
	completed int
	failed    int
	cancelled int
}

func (r *runTally) observe(n worker.Notification) {
	if n.RunID != r.runID {
		*r = runTally{runID: n.RunID, started: n.Time}
	}
	switch n.Kind {
	case worker.TaskCompleted:
		r.completed++
	case worker.TaskFailed:
		r.failed++
	case worker.TaskCancelled:
		r.cancelled++
	}
}

func (r runTally) total() int { return r.completed + r.failed + r.cancelled }

// pump drains the worker mailbox in order until ctx ends.
func (m *Manager) pump(ctx context.Context) {
	defer close(m.pumpDone)
	for {
		n, err := m.mailbox.Recv(ctx)
		if err != nil {
			for _, rest := range m.mailbox.Drain() {
				m.handle(rest)
			}
			return
		}
		m.handle(n)
	}
}

func (m *Manager) handle(n worker.Notification) {
	m.events.append(n)
	m.run.observe(n)

	switch n.Kind {
	case worker.TaskStarted:
		return
	case worker.TaskFailed:
		m.setLastError(errors.New(n.Message))
	case worker.WorkerFinished:
		m.finishRun(n)
		return
	}
	if n.IsTerminal() {
		task, ok := m.store.Get(n.TaskID)
		if !ok {
			task = queue.Task{ID: n.TaskID}
		}
		m.recordHistory(n, task)
		if n.Kind == worker.TaskFailed {
			m.dispatch("task_failed", func(ctx context.Context) error {
				return m.notifier.NotifyTaskFailed(ctx, task.ID, task.InputPath, n.Message)
			})
		}
	}
}

func (m *Manager) finishRun(n worker.Notification) {
	tally := m.run
	m.run = runTally{}
	if tally.total() == 0 {
		return
	}
	summary := notifications.QueueSummary{
		Completed: tally.completed,
		Failed:    tally.failed,
		Cancelled: tally.cancelled,
		Duration:  n.Time.Sub(tally.started),
	}
	m.logger.Info("queue run finished",
		logging.String(logging.FieldEventType, "queue_run_finished"),
		logging.String(logging.FieldRunID, n.RunID),
		logging.String("reason", n.Message),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
		logging.Duration("duration", summary.Duration),
	)
	m.dispatch("queue_finished", func(ctx context.Context) error {
		return m.notifier.NotifyQueueFinished(ctx, summary)
	})
}

func (m *Manager) recordHistory(n worker.Notification, task queue.Task) {
	if m.journal == nil {
		return
	}
	entry := history.Entry{
		TaskID:     n.TaskID,
		RunID:      n.RunID,
		InputPath:  task.InputPath,
		OutputDir:  task.OutputDir,
		RecipePath: task.RecipePath,
		Status:     historyStatus(n.Kind),
		Message:    n.Message,
		StartedAt:  task.StartedAt,
		FinishedAt: task.FinishedAt,
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = n.Time
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.journal.Record(ctx, entry); err != nil {
		logging.WarnWithContext(m.logger, "history record failed", "history_record_failed",
			logging.Int64(logging.FieldTaskID, n.TaskID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
			logging.String(logging.FieldImpact, "task missing from history listing"),
		)
	}
}

func historyStatus(kind worker.Kind) string {
	switch kind {
	case worker.TaskCompleted:
		return string(queue.StatusCompleted)
	case worker.TaskFailed:
		return string(queue.StatusFailed)
	default:
		return string(queue.StatusCancelled)
	}
}

// dispatch runs a notification send off the pump goroutine.
func (m *Manager) dispatch(event string, send func(context.Context) error) {
	m.sideWG.Add(1)
	go func() {
		defer m.sideWG.Done()
		if err := send(context.Background()); err != nil {
			if errors.Is(err, context.Canceled) {
				m.logger.Debug("notification canceled", logging.String("event", event))
				return
			}
			logging.WarnWithContext(m.logger, "notification failed", "notification_failed",
				logging.String("event", event),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ntfy_topic and network reachability"),
				logging.String(logging.FieldImpact, "push notification not delivered"),
			)
		}
	}()
}
