package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest marks malformed input rejected before any process
	// is spawned (empty segment lists, zero overlays, bad keyframes).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrProbe marks a failed or timed-out encoder capability probe.
	// Probe errors are recovered locally by falling through to the next
	// candidate; only the final software fallback surfaces one.
	ErrProbe = errors.New("probe failure")

	// ErrExternalTool marks a non-zero exit or spawn failure from the
	// encoder or upscaler binary. The process error is preserved verbatim
	// in the chain.
	ErrExternalTool = errors.New("external tool error")

	// ErrConfiguration marks fatal misconfiguration, such as the software
	// encoder fallback failing its own probe.
	ErrConfiguration = errors.New("configuration error")

	// ErrBusy marks an attempt to start a job in a category that already
	// has one running.
	ErrBusy = errors.New("job already running")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsCancelled reports whether err stems from an explicit cancellation
// rather than a failure. Cancellation propagates through context errors
// and the process kill they trigger.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
