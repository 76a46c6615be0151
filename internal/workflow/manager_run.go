package workflow

import (
	"context"
	"fmt"

	"smoothieq/internal/logging"
	"smoothieq/internal/worker"
)

// Start clears both stop flags and launches one worker loop. It fails with
// ErrWorkerActive while a loop is still running.
func (m *Manager) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("start: %w", ErrWorkerActive)
	}

	m.store.ClearStop()
	m.store.ClearForceStop()

	runCtx, cancel := context.WithCancel(ctx)
	loop := worker.NewLoop(m.store, m.runner, m.mailbox, m.base)
	m.loop = loop
	m.cancel = cancel
	m.running = true
	m.lastErr = nil
	m.progress = taskProgress{}
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("queue started",
		logging.String(logging.FieldEventType, "queue_started"),
		logging.String(logging.FieldRunID, loop.RunID()),
		logging.Int("pending", m.store.Stats()["pending"]),
	)

	go func() {
		defer m.wg.Done()
		loop.Run(runCtx)
		cancel()

		m.mu.Lock()
		if m.loop == loop {
			m.running = false
			m.cancel = nil
		}
		m.mu.Unlock()
	}()
	return nil
}

// Stop force-stops a running worker and waits for it to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	running := m.running
	m.mu.Unlock()

	if running {
		m.store.RequestForceStop()
		m.store.RequestStop()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Wait blocks until the current worker loop, if any, has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// IsRunning reports whether a worker loop is active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Pause asks the worker to stop after the current task.
func (m *Manager) Pause() {
	m.store.RequestStop()
	m.logger.Info("pause requested", logging.String(logging.FieldEventType, "queue_pause_requested"))
}

// Resume clears a pending pause. It does not start a worker.
func (m *Manager) Resume() {
	m.store.ClearStop()
	m.logger.Info("pause cleared", logging.String(logging.FieldEventType, "queue_pause_cleared"))
}

// TogglePause flips the stop flag and reports whether the queue is now paused.
func (m *Manager) TogglePause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store.IsStopRequested() {
		m.store.ClearStop()
		return false
	}
	m.store.RequestStop()
	return true
}

// ForceStop kills the in-flight process and halts the queue after it.
func (m *Manager) ForceStop() {
	m.store.RequestForceStop()
	m.store.RequestStop()
	m.logger.Info("force stop requested", logging.String(logging.FieldEventType, "queue_force_stop_requested"))
}
