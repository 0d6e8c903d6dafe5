package config

import (
	"errors"
	"fmt"
	"strings"
)

var validResolutions = map[string]struct{}{
	"360p": {}, "480p": {}, "720p": {}, "1080p": {}, "source": {},
}

var validQualities = map[string]struct{}{
	"fast": {}, "medium": {}, "slow": {},
}

var validLogFormats = map[string]struct{}{
	"console": {}, "json": {},
}

// Validate checks the configuration for values that would fail later in a
// less obvious place.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Tools.FFmpeg) == "" {
		problems = append(problems, "tools.ffmpeg must be set")
	}
	if strings.TrimSpace(c.Tools.FFprobe) == "" {
		problems = append(problems, "tools.ffprobe must be set")
	}
	if _, ok := validResolutions[c.Render.Resolution]; !ok {
		problems = append(problems, fmt.Sprintf("render.resolution %q is not one of 360p/480p/720p/1080p/source", c.Render.Resolution))
	}
	if _, ok := validQualities[c.Render.Quality]; !ok {
		problems = append(problems, fmt.Sprintf("render.quality %q is not one of fast/medium/slow", c.Render.Quality))
	}
	if _, ok := validLogFormats[c.Logging.Format]; !ok {
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of console/json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
