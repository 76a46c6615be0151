// Package history keeps an append-only SQLite journal of finished task
// outcomes.
//
// Entries are written when the controller observes a terminal notification
// and are only ever read back for display. The journal never feeds the
// in-memory queue; restarting the daemon always begins with an empty queue.
package history
