// Package notifications pushes conversion events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the orchestrator publishes unconditionally. Each event type can be muted
// through the [notifications] config section.
package notifications
