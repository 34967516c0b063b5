// Package ffmpeg shells out to the FFmpeg binary and decodes its
// machine-readable progress stream into typed callbacks.
package ffmpeg
