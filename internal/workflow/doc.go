// Package workflow drives queue processing for the daemon.
//
// The Manager runs a single conversion lane: it claims the oldest pending
// job, runs the configured stage handler (Prepare then Execute), and
// persists the outcome. One job runs at a time; the engine is assumed to
// saturate the machine on its own.
//
// The manager owns queue-level concerns: polling, pause/resume, queue
// started/completed notifications, panic containment, and status
// aggregation for the API. Job-level concerns (progress persistence,
// history, notifications for individual conversions) belong to the stage
// handler.
//
// Shutdown semantics: Stop lets the in-flight job drain for a grace period
// before cancelling its context. A job interrupted by shutdown keeps its
// running status in the queue; startup recovery resets it to pending so the
// next daemon run picks it up again.
package workflow
