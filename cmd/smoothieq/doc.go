// Package main hosts the smoothieq CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon: queue editing, worker control, recipe and output folder
// selection, event watching, history, and log tailing. It also runs the daemon
// itself (`smoothieq daemon run`) and a foreground mode (`smoothieq run`) that
// processes files without a daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
