// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes the container and stream durations;
// Duration reduces that to the length used to clamp split ranges.
package ffprobe
