// Package supervisor runs a single smoothie-rs invocation for a queued task
// and maps how the process ended to a typed Outcome.
//
// Run checks the recipe, launches the executable in its own process group,
// streams its output into the logger, and polls on a fixed interval for
// either a force-stop request or process exit. A force stop kills the whole
// process group. Run blocks until the outcome is known.
package supervisor
