// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The pipeline uses it for three things: source dimensions (upscale
// factor selection), audio stream presence (PiP audio fallback order),
// and duration (progress percent for encode jobs).
package ffprobe
