package workflow

import (
	"smoothieq/internal/queue"
	"smoothieq/internal/worker"
)

// StatusSummary is a point-in-time view of the manager.
type StatusSummary struct {
	Running     bool                     `json:"running"`
	WorkerState worker.State             `json:"worker_state"`
	RunID       string                   `json:"run_id,omitempty"`
	Flags       queue.Flags              `json:"flags"`
	QueueStats  map[queue.StatusKind]int `json:"queue_stats"`
	Current     *queue.Task              `json:"current,omitempty"`
	Progress    float64                  `json:"progress"`
	Recipe      string                   `json:"recipe"`
	OutputDir   string                   `json:"output_dir"`
	Executable  string                   `json:"executable"`
	LastError   string                   `json:"last_error,omitempty"`
	LastEvent   uint64                   `json:"last_event"`
}

// Paused reports whether a graceful stop is pending or in effect.
func (s StatusSummary) Paused() bool { return s.Flags.StopRequested }

// Status returns the latest manager information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:     m.running,
		WorkerState: worker.StateIdle,
		Recipe:      m.recipe,
		OutputDir:   m.outputDir,
		Executable:  m.executable,
	}
	if m.loop != nil {
		summary.WorkerState = m.loop.State()
		summary.RunID = m.loop.RunID()
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	progress := m.progress
	m.mu.RUnlock()

	summary.Flags = m.store.Flags()
	summary.QueueStats = m.store.Stats()
	summary.LastEvent = m.events.lastSeq()
	for _, task := range m.store.Snapshot() {
		if task.Status.Kind != queue.StatusRunning {
			continue
		}
		current := task
		summary.Current = &current
		if progress.taskID == task.ID {
			summary.Progress = progress.percent
		}
		break
	}
	return summary
}
