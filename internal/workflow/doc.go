// Package workflow owns the smoothie-rs queue for one process: the task store,
// the single background worker, and everything that reacts to worker
// notifications.
//
// Manager is the control surface used by the daemon's RPC service and by the
// foreground run command. It assigns task ids, applies the selected recipe and
// output folder to new files, enforces the rules for start, pause, force stop,
// clear, and remove, and pumps the worker mailbox in order. The pump keeps a
// bounded event log for long-polling clients, writes finished tasks to the
// history journal, and forwards failures and run summaries to ntfy.
package workflow
