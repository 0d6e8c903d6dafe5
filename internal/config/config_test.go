package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	if path == "" {
		t.Fatal("expected resolved path even when missing")
	}
	if cfg.Render.Resolution != "1080p" || cfg.Render.Quality != "medium" {
		t.Fatalf("unexpected defaults: %+v", cfg.Render)
	}
	if cfg.FFmpegBinary() != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg default: %s", cfg.FFmpegBinary())
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"

[tools]
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"

[render]
resolution = "720P"
quality = "Fast"

[logging]
dir = "` + filepath.Join(dir, "logs") + `"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Render.Resolution != "720p" {
		t.Fatalf("resolution not lowercased: %q", cfg.Render.Resolution)
	}
	if cfg.Render.Quality != "fast" {
		t.Fatalf("quality not lowercased: %q", cfg.Render.Quality)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("ffmpeg override lost: %q", cfg.FFmpegBinary())
	}
	if !strings.HasSuffix(cfg.HistoryPath(), "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[render]
resolution = "4k"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for unknown resolution")
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.StagingDir = "~/staging-test"
	cfg.Logging.Dir = dir
	cfg.Tools.ModelsDir = dir

	// Load via file to exercise the normalize path.
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\nstaging_dir = \"~/staging-test\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasPrefix(loaded.StagingDir(), home) {
		t.Fatalf("tilde not expanded: %q", loaded.StagingDir())
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	if !strings.Contains(config.Sample(), "[tools]") {
		t.Fatal("sample config missing tools section")
	}
}
