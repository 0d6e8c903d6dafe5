package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// normalize expands and cleans all path-valued fields and lowercases the
// enum-valued ones so later comparisons are exact.
func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("staging_dir: %w", err)
	}
	if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
		return fmt.Errorf("logging dir: %w", err)
	}
	if c.Tools.ModelsDir, err = expandPath(c.Tools.ModelsDir); err != nil {
		return fmt.Errorf("models_dir: %w", err)
	}

	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Tools.Upscaler = strings.TrimSpace(c.Tools.Upscaler)

	c.Render.Resolution = strings.ToLower(strings.TrimSpace(c.Render.Resolution))
	c.Render.Quality = strings.ToLower(strings.TrimSpace(c.Render.Quality))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	return nil
}

// expandPath resolves ~ prefixes and returns a cleaned absolute-ish path.
// Empty input stays empty.
func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}
