// Package convertstage runs queued conversions through the ffmpeg engine.
//
// Prepare validates the job's settings and source file and reserves a
// collision-free output path. Execute stages the engine's output under the
// staging directory, bridges the conversion event stream into queue progress
// updates and WebSocket broadcasts, polls for cancellation requests, and
// moves the finished file into place. Terminal outcomes are persisted here,
// together with history entries, optional thumbnails, and ntfy notifications;
// the workflow manager only records failures this stage could not persist
// itself.
package convertstage
