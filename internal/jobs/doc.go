// Package jobs supervises external encoder invocations. A single-slot
// registry per job category (export, enhance) enforces that at most one
// job runs per category; each job exclusively owns a temp directory that
// is removed on every terminal state. Progress from ffmpeg's -progress
// stream is clamped and pushed to the caller as typed events.
package jobs
