package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"clipforge/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "concat", "normalize segment", "ffmpeg failed", cause)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected original cause preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "normalize segment") {
		t.Fatalf("expected operation context in message, got %q", err.Error())
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrInvalidRequest, "pip", "validate overlays", "at least one overlay required", nil)
	if !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected invalid request marker, got %v", err)
	}
}

func TestWrapNilMarkerDefaults(t *testing.T) {
	err := services.Wrap(nil, "stage", "op", "", errors.New("boom"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("nil marker should default to external tool, got %v", err)
	}
}

func TestIsCancelled(t *testing.T) {
	wrapped := fmt.Errorf("render aborted: %w", context.Canceled)
	if !services.IsCancelled(wrapped) {
		t.Fatal("expected wrapped context.Canceled to classify as cancelled")
	}
	if services.IsCancelled(errors.New("exit status 1")) {
		t.Fatal("plain process failure must not classify as cancelled")
	}
}
