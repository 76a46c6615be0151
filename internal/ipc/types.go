package ipc

import (
	"time"

	"smoothieq/internal/history"
	"smoothieq/internal/queue"
	"smoothieq/internal/worker"
)

// Task is the wire form of a queued task.
type Task struct {
	ID         int64      `json:"id"`
	InputPath  string     `json:"input_path"`
	OutputDir  string     `json:"output_dir"`
	RecipePath string     `json:"recipe_path"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// FromTask converts a queue task to its wire form.
func FromTask(task queue.Task) Task {
	out := Task{
		ID:         task.ID,
		InputPath:  task.InputPath,
		OutputDir:  task.OutputDir,
		RecipePath: task.RecipePath,
		Status:     string(task.Status.Kind),
		Reason:     task.Status.Reason,
	}
	if !task.StartedAt.IsZero() {
		started := task.StartedAt
		out.StartedAt = &started
	}
	if !task.FinishedAt.IsZero() {
		finished := task.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

// Event mirrors a worker notification.
type Event = worker.Notification

// HistoryEntry is the wire form of a journal entry.
type HistoryEntry struct {
	TaskID     int64     `json:"task_id"`
	RunID      string    `json:"run_id"`
	InputPath  string    `json:"input_path"`
	OutputDir  string    `json:"output_dir"`
	RecipePath string    `json:"recipe_path"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func fromHistory(entry history.Entry) HistoryEntry {
	return HistoryEntry{
		TaskID:     entry.TaskID,
		RunID:      entry.RunID,
		InputPath:  entry.InputPath,
		OutputDir:  entry.OutputDir,
		RecipePath: entry.RecipePath,
		Status:     entry.Status,
		Message:    entry.Message,
		StartedAt:  entry.StartedAt,
		FinishedAt: entry.FinishedAt,
	}
}

// AddRequest queues files.
type AddRequest struct {
	Paths []string `json:"paths"`
}

// AddResponse lists queued tasks and rejected inputs.
type AddResponse struct {
	Tasks    []Task   `json:"tasks"`
	Rejected []string `json:"rejected"`
}

// ListRequest filters the queue listing by status kind.
type ListRequest struct {
	Statuses []string `json:"statuses"`
}

// ListResponse contains queue entries in scheduling order.
type ListResponse struct {
	Tasks []Task `json:"tasks"`
}

// StartRequest launches the worker.
type StartRequest struct{}

// StartResponse indicates whether the worker was started.
type StartResponse struct {
	Started bool   `json:"started"`
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// ControlRequest carries no arguments; used by pause, resume, and force stop.
type ControlRequest struct{}

// ControlResponse reports the flag state after a control call.
type ControlResponse struct {
	Paused        bool `json:"paused"`
	ForceStopping bool `json:"force_stopping"`
}

// ClearRequest empties the queue.
type ClearRequest struct{}

// ClearResponse reports the number of removed tasks.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// RemoveRequest removes one pending task.
type RemoveRequest struct {
	ID int64 `json:"id"`
}

// RemoveResponse confirms removal.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}

// PathRequest selects a recipe or output folder.
type PathRequest struct {
	Path string `json:"path"`
}

// PathResponse reports how many pending tasks were updated.
type PathResponse struct {
	Path    string `json:"path"`
	Updated int    `json:"updated"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and worker status.
type StatusResponse struct {
	Running       bool           `json:"running"`
	WorkerRunning bool           `json:"worker_running"`
	WorkerState   string         `json:"worker_state"`
	RunID         string         `json:"run_id"`
	Paused        bool           `json:"paused"`
	ForceStopping bool           `json:"force_stopping"`
	QueueStats    map[string]int `json:"queue_stats"`
	Current       *Task          `json:"current"`
	Progress      float64        `json:"progress"`
	Recipe        string         `json:"recipe"`
	OutputDir     string         `json:"output_dir"`
	Executable    string         `json:"executable"`
	LastError     string         `json:"last_error"`
	LastEvent     uint64         `json:"last_event"`
	LockPath      string         `json:"lock_path"`
	SocketPath    string         `json:"socket_path"`
	HistoryPath   string         `json:"history_path"`
	LogPath       string         `json:"log_path"`
	PID           int            `json:"pid"`
}

// EventsRequest polls notifications newer than After. WaitMillis > 0 blocks
// until one arrives or the wait elapses.
type EventsRequest struct {
	After      uint64 `json:"after"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns notifications and the cursor to poll from next.
type EventsResponse struct {
	Events []Event `json:"events"`
	Last   uint64  `json:"last"`
}

// RecipesRequest lists installation recipes.
type RecipesRequest struct{}

// RecipesResponse lists recipe paths and the current selection.
type RecipesResponse struct {
	Recipes  []string `json:"recipes"`
	Selected string   `json:"selected"`
}

// HistoryRequest fetches finished tasks.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse lists finished tasks, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// LogTailRequest fetches daemon log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
	TaskID     int64 `json:"task_id"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
