// Package daemon hosts the long-running recast process: it enforces
// single-instance execution with a file lock, recovers jobs interrupted by
// the previous shutdown, runs the workflow manager, and exposes the HTTP API
// and WebSocket event stream. An optional udev watcher enqueues media found
// on newly attached removable drives.
package daemon
