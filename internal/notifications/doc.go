// Package notifications pushes conversion milestones to operators over ntfy.
//
// Workflow code publishes enumerated events with a small payload map and
// never builds HTTP requests itself. When no ntfy topic is configured the
// service degrades to a no-op, so callers publish unconditionally. Per-event
// toggles in the config suppress categories an operator does not care about.
//
// Alternative transports only need to implement Service.
package notifications
