// Package queue holds the in-memory task list shared by the controller and the
// background worker.
//
// The Store serializes every operation behind a single mutex and hands out
// copies of tasks, so callers can never mutate queue state except through the
// store's methods. A scan cursor lets the worker skip already resolved tasks
// without rescanning the whole list; it is an optimization only and a full
// scan from the start is always correct.
//
// Queue state lives only for the lifetime of the process.
package queue
