// Package ffprobe shells out to the ffprobe binary and exposes the
// container metadata conversions depend on: duration, dimensions, frame
// rate, and codec names.
package ffprobe
