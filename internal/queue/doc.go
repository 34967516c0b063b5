// Package queue persists conversion jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages the database connection, schema initialization, status
// transitions, progress updates, and stats queries. Jobs capture the source
// and output paths, the serialized conversion settings, progress, and the
// failure detail (error message plus engine log tail) so the daemon, the API,
// and the CLI can coordinate without additional state.
//
// The database is treated as transient storage for in-flight and recently
// finished jobs rather than a long-term archive; completed conversions are
// recorded separately in the history store. Schema changes bump the version
// in schema.go; users clear the database to adopt the new schema.
package queue
