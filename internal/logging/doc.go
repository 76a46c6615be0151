// Package logging builds the slog loggers used by the daemon and CLI.
//
// Console output is one line per record with the component lifted into the
// prefix; JSON output uses short keys. Each daemon start writes its own
// session file next to a smoothieq.log pointer, and old sessions are pruned
// by age. WithContext tags records with task and run identifiers.
package logging
