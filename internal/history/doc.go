// Package history persists finished conversions in an embedded Pebble
// database: a capped, newest-first record of what was converted, with what
// settings, and how it ended.
package history
