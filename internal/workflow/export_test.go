package workflow

// RecordProgress feeds a progress sample as the supervisor would.
func (m *Manager) RecordProgress(taskID int64, percent float64) {
	m.recordProgress(taskID, percent)
}
