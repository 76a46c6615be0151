package workflow

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"smoothieq/internal/logging"
	"smoothieq/internal/queue"
)

// AddFiles queues every path with an accepted extension, assigning ids in
// order. Rejected paths are reported together in the returned error, each
// wrapping ErrUnsupportedFile; accepted files are queued regardless.
func (m *Manager) AddFiles(paths ...string) ([]queue.Task, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	recipe := m.recipe
	outputDir := m.outputDir

	var (
		added    []queue.Task
		rejected []error
	)
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if !m.cfg.AcceptsExtension(filepath.Ext(path)) {
			rejected = append(rejected, fmt.Errorf("%s: %w", path, ErrUnsupportedFile))
			continue
		}
		m.nextID++
		task := queue.NewTask(m.nextID, path, defaultOutputDir(outputDir, path), recipe)
		m.store.Add(task)
		added = append(added, task)
	}
	m.mu.Unlock()

	for _, task := range added {
		m.logger.Info("task queued",
			logging.String(logging.FieldEventType, "task_queued"),
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.String("input", task.InputPath),
		)
	}
	if len(rejected) > 0 {
		m.logger.Debug("files rejected", logging.Int("count", len(rejected)))
	}
	return added, errors.Join(rejected...)
}

func defaultOutputDir(selected, input string) string {
	if selected != "" {
		return selected
	}
	return filepath.Dir(input)
}

// Clear empties the queue. It requires an idle worker and at least one task.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("clear: %w", ErrWorkerActive)
	}
	if m.store.Len() == 0 {
		return fmt.Errorf("clear: %w", ErrQueueEmpty)
	}
	m.store.ClearAll()
	m.logger.Info("queue cleared", logging.String(logging.FieldEventType, "queue_cleared"))
	return nil
}

// Remove deletes a pending task.
func (m *Manager) Remove(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Remove(id); err != nil {
		return err
	}
	m.logger.Info("task removed",
		logging.String(logging.FieldEventType, "task_removed"),
		logging.Int64(logging.FieldTaskID, id),
	)
	return nil
}

// SetRecipe selects the recipe for new files and reassigns it to every
// pending task. It returns how many pending tasks changed.
func (m *Manager) SetRecipe(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("set recipe: %w", ErrEmptyPath)
	}
	m.mu.Lock()
	m.recipe = path
	m.mu.Unlock()
	updated := m.store.UpdatePendingRecipe(path)
	m.logger.Info("recipe selected",
		logging.String(logging.FieldEventType, "recipe_selected"),
		logging.String("recipe", path),
		logging.Int("pending_updated", updated),
	)
	return updated, nil
}

// SetOutputDir selects the output folder for new files and reassigns it to
// every pending task. It returns how many pending tasks changed.
func (m *Manager) SetOutputDir(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("set output dir: %w", ErrEmptyPath)
	}
	m.mu.Lock()
	m.outputDir = path
	m.mu.Unlock()
	updated := m.store.UpdatePendingOutputDir(path)
	m.logger.Info("output folder selected",
		logging.String(logging.FieldEventType, "output_dir_selected"),
		logging.String("output_dir", path),
		logging.Int("pending_updated", updated),
	)
	return updated, nil
}

// Snapshot returns a copy of every task in scheduling order.
func (m *Manager) Snapshot() []queue.Task {
	return m.store.Snapshot()
}

// Recipe returns the recipe applied to new files.
func (m *Manager) Recipe() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recipe
}

// OutputDir returns the selected output folder; empty means next to each input.
func (m *Manager) OutputDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outputDir
}
