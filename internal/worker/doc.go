// Package worker drives the single background loop that dispatches pending
// tasks to the supervisor and reports progress through an ordered Mailbox.
//
// A Loop instance runs until the queue has no pending task, a graceful stop is
// requested, or its context ends. Every instance emits WorkerFinished exactly
// once, as its last notification. Callers must not run two loops against the
// same store at the same time.
package worker
