package testsupport

import (
	"testing"

	"smoothieq/internal/config"
	"smoothieq/internal/history"
	"smoothieq/internal/queue"
)

// MustOpenJournal opens the history journal for cfg and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *history.Journal {
	t.Helper()

	journal, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = journal.Close()
	})
	return journal
}

// AddTasks queues one pending task per input, numbering them from 1 in order.
func AddTasks(t testing.TB, store *queue.Store, recipe string, inputs ...string) []queue.Task {
	t.Helper()

	tasks := make([]queue.Task, 0, len(inputs))
	for i, input := range inputs {
		task := queue.NewTask(int64(i+1), input, t.TempDir(), recipe)
		store.Add(task)
		tasks = append(tasks, task)
	}
	return tasks
}
