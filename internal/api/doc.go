// Package api defines wire-format types and converters for the daemon HTTP
// and WebSocket layer. It translates internal queue, history, and workflow
// models into transport-friendly DTOs that the CLI and other consumers can
// render without coupling to internal types.
//
// # Key Types
//
// QueueJob: transport representation of a queue entry with progress,
// settings, and timestamps.
//
// WorkflowStatus: manager running state, queue stats, stage health, and last
// processed job.
//
// DaemonStatus: aggregated runtime information including external binaries.
//
// Hub: WebSocket fan-out for live progress frames.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Status, convert.Status) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds. Job settings are passed through
// as json.RawMessage to avoid double-encoding.
package api
