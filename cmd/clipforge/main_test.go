package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSegmentFlag(t *testing.T) {
	segment, err := parseSegmentFlag("/media/clip.mp4:1.5:10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if segment.SourcePath != "/media/clip.mp4" || segment.StartSeconds != 1.5 || segment.EndSeconds != 10 {
		t.Fatalf("unexpected segment: %+v", segment)
	}

	// Colons inside the path split from the right.
	segment, err = parseSegmentFlag("/media/a:b.mp4:0:2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if segment.SourcePath != "/media/a:b.mp4" {
		t.Fatalf("expected colon path preserved, got %q", segment.SourcePath)
	}

	for _, raw := range []string{"", "no-times", "path:only-one", "path:x:2", "path:1:y"} {
		if _, err := parseSegmentFlag(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestParseKeyframeFlag(t *testing.T) {
	frame, err := parseKeyframeFlag("2:0.5:0.25:0.3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if frame.TimeSeconds != 2 || frame.XFraction != 0.5 || frame.YFraction != 0.25 || frame.SizeFraction != 0.3 {
		t.Fatalf("unexpected keyframe: %+v", frame)
	}

	for _, raw := range []string{"", "1:2:3", "1:2:3:4:5", "a:2:3:4"} {
		if _, err := parseKeyframeFlag(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestRenderTable(t *testing.T) {
	rendered := renderTable(
		[]string{"Name", "Size"},
		[][]string{{"clip.mp4", "12 MB"}, {"long.mp4"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	if !strings.Contains(rendered, "clip.mp4") || !strings.Contains(rendered, "12 MB") {
		t.Fatalf("table missing cells:\n%s", rendered)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("empty header should render nothing")
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "init", "--path", target})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[tools]") {
		t.Fatalf("sample config missing tools section:\n%s", data)
	}
	if !strings.Contains(out.String(), target) {
		t.Fatalf("expected confirmation mentioning %s, got %q", target, out.String())
	}
}
