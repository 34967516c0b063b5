// Package main hosts the recast CLI entrypoint and command graph.
//
// The command tree covers three surfaces: one-shot conversions that drive
// the engine directly (convert, probe, formats), queue and history
// management that prefers the daemon API and falls back to the stores, and
// daemon lifecycle control (start, stop, restart, status, pause, resume).
//
// Keep this package lean: configuration resolution and logger setup live in
// the command context, rendering helpers are shared across commands, and
// all real behavior belongs to the internal packages.
package main
