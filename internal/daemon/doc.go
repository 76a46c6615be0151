// Package daemon coordinates the long-running smoothieq process.
//
// It ties configuration, the workflow manager, and the history journal into a
// single lifecycle with flock-based locking so only one daemon owns a state
// directory. The daemon prunes old history on start, exposes the status and
// discovery helpers used by the RPC service, and force-stops any in-flight
// smoothie-rs process on shutdown.
//
// Queue semantics belong to the workflow package; keep this package focused on
// startup, shutdown, and high level coordination.
package daemon
