package pipeline

import (
	"context"
	"fmt"
	"os/exec"

	"clipforge/internal/fileutil"
	"clipforge/internal/services"
)

// thumbnailHeight keeps posters small; width follows the source aspect.
const thumbnailHeight = 360

// Thumbnail extracts a single poster frame at the given timestamp. It is
// quick enough to run outside the job slots and never blocks a render.
func (s *Service) Thumbnail(ctx context.Context, sourcePath, outputPath string, atSeconds float64) (string, error) {
	if atSeconds < 0 {
		return "", services.Wrap(services.ErrInvalidRequest, "thumbnail", "validate timestamp", fmt.Sprintf("timestamp %.3f is negative", atSeconds), nil)
	}
	finalPath := fileutil.NextAvailablePath(outputPath)

	cmd := exec.CommandContext(ctx, s.cfg.FFmpegBinary(),
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-ss", formatSeconds(atSeconds),
		"-i", sourcePath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=-2:%d", thumbnailHeight),
		"-y", finalPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "thumbnail", "extract poster frame", string(output), err)
	}
	return finalPath, nil
}
