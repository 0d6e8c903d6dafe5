package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/fileutil"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/render"
)

// runConcat executes the two-phase concatenation: every segment is first
// re-encoded to a uniform elementary stream, unconditionally, then the
// normalized parts are joined by lossless stream copy over a manifest.
// There is no fast path for already-compatible segments; detecting "close
// enough" codec parameters is where subtle mismatches creep in.
func (s *Service) runConcat(ctx context.Context, req render.Concat, finalPath string, onProgress jobs.ProgressFunc) error {
	jobCtx, job, err := s.begin(ctx, jobs.CategoryExport, true)
	if err != nil {
		return err
	}
	started := time.Now()
	s.logger.Info("concat started",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("segments", len(req.Segments)),
		logging.String("output", finalPath))

	runErr := s.concatPhases(jobCtx, job, req, finalPath, onProgress)
	s.finish(job, "concat", finalPath, started, runErr)
	return runErr
}

func (s *Service) concatPhases(ctx context.Context, job *jobs.Job, req render.Concat, finalPath string, onProgress jobs.ProgressFunc) error {
	totalDuration := req.TotalDuration()
	doneDuration := 0.0
	segmentPaths := make([]string, 0, len(req.Segments))

	for i, segment := range req.Segments {
		segmentPath := filepath.Join(job.TempDir, fmt.Sprintf("segment_%03d.mp4", i+1))
		argv, err := s.buildTrimArgs(ctx, render.Trim{Segment: segment, Options: req.Options}, segmentPath)
		if err != nil {
			return err
		}

		segmentDuration := segment.Duration()
		base := doneDuration
		err = job.RunCommand(ctx, argv, jobs.RunOptions{
			Stage:        "normalizing",
			TotalSeconds: segmentDuration,
			OnProgress: func(event jobs.Event) {
				if onProgress == nil {
					return
				}
				// Re-map the per-segment percent onto the whole phase.
				event.Percent = (base + event.Percent/100*segmentDuration) / totalDuration * 100
				onProgress(event)
			},
		})
		if err != nil {
			return err
		}
		doneDuration += segmentDuration
		segmentPaths = append(segmentPaths, segmentPath)
	}

	manifestPath := filepath.Join(job.TempDir, "concat.txt")
	lines := make([]string, 0, len(segmentPaths))
	for _, path := range segmentPaths {
		lines = append(lines, "file '"+escapeManifestPath(path)+"'")
	}
	if err := fileutil.WriteLines(manifestPath, lines); err != nil {
		return fmt.Errorf("write concat manifest: %w", err)
	}

	argv := append([]string{s.cfg.FFmpegBinary()}, ffmpegBaseArgs...)
	argv = append(argv,
		"-f", "concat", "-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y", finalPath,
	)
	return job.RunCommand(ctx, argv, jobs.RunOptions{
		Stage:        "concatenating",
		TotalSeconds: totalDuration,
		OnProgress:   onProgress,
	})
}

// escapeManifestPath escapes single quotes for ffmpeg's concat demuxer
// manifest syntax.
func escapeManifestPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
