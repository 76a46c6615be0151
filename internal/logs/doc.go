// Package logs tails the daemon log file for `smoothieq logs`.
//
// A negative offset returns the last N lines; a non-negative offset resumes
// where the previous call stopped. Follow mode polls until new lines arrive or
// the wait elapses, and an optional task filter keeps only lines tagged with a
// given task_id.
package logs
