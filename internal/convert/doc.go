// Package convert is the conversion core: it turns a settings value into an
// engine argument list, launches the engine through the ffmpeg client, and
// exposes each running conversion as a cancellable stream of typed progress
// events. One Start call produces one independent Handle; batch processing
// layers strictly sequential execution on top.
package convert
