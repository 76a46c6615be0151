// Package notifications pushes queue events to ntfy.
//
// The default implementation posts to the topic configured in config.toml and
// degrades to a no-op when no topic is set. Per-event toggles in the
// [notifications] section decide which events are delivered.
package notifications
