// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between queue models and wire representations. Workflow errors travel as RPC
// error strings; the client maps the well-known ones back onto the workflow
// and queue sentinels so callers can use errors.Is.
package ipc
