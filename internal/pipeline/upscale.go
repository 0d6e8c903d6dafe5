package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"clipforge/internal/fileutil"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/services"
)

const (
	// upscaleBatchSize bounds concurrent upscaler processes. The whole
	// batch completes before the next starts, which keeps GPU pressure
	// predictable and gives the throughput estimate clean boundaries.
	upscaleBatchSize = 4

	// extractionFPS is the fixed frame rate for extraction and reassembly.
	extractionFPS = 30

	// Output caps: the upscaled result never exceeds 1080p.
	maxUpscaleWidth  = 1920
	maxUpscaleHeight = 1080
)

// SelectScale picks the largest integer multiplier in {4,3,2,1} keeping
// the output within 1920x1080. When even 1x exceeds the cap, it falls back
// to the floor of the limiting ratio, never below 1.
func SelectScale(width, height int) int {
	for _, m := range []int{4, 3, 2, 1} {
		if width*m <= maxUpscaleWidth && height*m <= maxUpscaleHeight {
			return m
		}
	}
	byWidth := maxUpscaleWidth / width
	byHeight := maxUpscaleHeight / height
	scale := byWidth
	if byHeight < scale {
		scale = byHeight
	}
	if scale < 1 {
		scale = 1
	}
	return scale
}

// Upscale runs the enhance pipeline: probe, frame extraction at a fixed
// fps, batched per-frame upscaling, and reassembly with the original
// source's audio. The returned path is collision-adjusted.
func (s *Service) Upscale(ctx context.Context, sourcePath, outputPath string, onProgress jobs.ProgressFunc) (string, error) {
	info, err := ffprobe.Inspect(ctx, s.cfg.FFprobeBinary(), sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrProbe, "upscale", "probe source", sourcePath, err)
	}
	width, height, ok := info.VideoDimensions()
	if !ok {
		return "", services.Wrap(services.ErrInvalidRequest, "upscale", "probe source", "source has no video stream", nil)
	}
	duration, _ := info.Duration()
	scale := SelectScale(width, height)
	finalPath := fileutil.NextAvailablePath(outputPath)

	jobCtx, job, err := s.begin(ctx, jobs.CategoryEnhance, true)
	if err != nil {
		return "", err
	}
	started := time.Now()
	s.logger.Info("upscale started",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", sourcePath),
		logging.Int("scale", scale),
		logging.String("output", finalPath))

	runErr := s.upscaleStages(jobCtx, job, sourcePath, finalPath, upscalePlan{
		scale:        scale,
		targetWidth:  evenDim(width * scale),
		targetHeight: evenDim(height * scale),
		duration:     duration,
		hasAudio:     info.HasAudio(),
	}, onProgress)
	s.finish(job, "upscale", finalPath, started, runErr)
	return finalPath, runErr
}

type upscalePlan struct {
	scale        int
	targetWidth  int
	targetHeight int
	duration     float64
	hasAudio     bool
}

func (s *Service) upscaleStages(ctx context.Context, job *jobs.Job, sourcePath, finalPath string, plan upscalePlan, onProgress jobs.ProgressFunc) error {
	framesDir := filepath.Join(job.TempDir, "frames")
	upscaledDir := filepath.Join(job.TempDir, "upscaled")
	for _, dir := range []string{framesDir, upscaledDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create frame directory: %w", err)
		}
	}

	// Extraction has no reliable total, so it reports as indeterminate.
	if onProgress != nil {
		onProgress(jobs.Event{Stage: "extracting", Percent: -1})
	}
	argv := append([]string{s.cfg.FFmpegBinary()}, ffmpegBaseArgs...)
	argv = append(argv,
		"-i", sourcePath,
		"-vf", fmt.Sprintf("fps=%d", extractionFPS),
		filepath.Join(framesDir, "frame_%06d.png"),
	)
	if err := job.RunCommand(ctx, argv, jobs.RunOptions{Stage: "extracting"}); err != nil {
		return err
	}

	frames, err := fileutil.SortedMatches(filepath.Join(framesDir, "frame_*.png"))
	if err != nil {
		return fmt.Errorf("list extracted frames: %w", err)
	}
	if len(frames) == 0 {
		return services.Wrap(services.ErrExternalTool, "extracting", "frame extraction", "no frames produced", nil)
	}

	if err := s.upscaleFrames(ctx, frames, upscaledDir, plan.scale, onProgress); err != nil {
		return err
	}

	return s.reassemble(ctx, job, sourcePath, upscaledDir, finalPath, plan, onProgress)
}

// upscaleFrames advances batch by batch; any single frame failure fails
// the whole job. After each batch the wall-clock throughput is projected
// into an ETA.
func (s *Service) upscaleFrames(ctx context.Context, frames []string, upscaledDir string, scale int, onProgress jobs.ProgressFunc) error {
	started := time.Now()
	total := len(frames)

	for offset := 0; offset < total; offset += upscaleBatchSize {
		end := offset + upscaleBatchSize
		if end > total {
			end = total
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for _, frame := range frames[offset:end] {
			frame := frame
			group.Go(func() error {
				return s.upscaleOneFrame(groupCtx, frame, filepath.Join(upscaledDir, filepath.Base(frame)), scale)
			})
		}
		if err := group.Wait(); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("upscaling: %w", context.Canceled)
			}
			return err
		}

		if onProgress != nil {
			onProgress(throughputEvent(end, total, time.Since(started)))
		}
	}
	return nil
}

func (s *Service) upscaleOneFrame(ctx context.Context, inputPath, outputPath string, scale int) error {
	cmd := exec.CommandContext(ctx, s.cfg.UpscalerBinary(),
		"-i", inputPath,
		"-o", outputPath,
		"-s", strconv.Itoa(scale),
		"-m", s.cfg.ModelsDir(),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("upscaling: %w", context.Canceled)
		}
		return services.Wrap(services.ErrExternalTool, "upscaling", filepath.Base(inputPath), string(output), err)
	}
	return nil
}

// reassemble re-encodes the upscaled frame sequence at the extraction fps,
// forcing the exact planned dimensions to absorb any off-by-one sizing
// from the upscaler, and passes the original source's audio through.
func (s *Service) reassemble(ctx context.Context, job *jobs.Job, sourcePath, upscaledDir, finalPath string, plan upscalePlan, onProgress jobs.ProgressFunc) error {
	encode, err := s.encodeArgs(ctx, s.qualityFromConfig())
	if err != nil {
		return err
	}

	argv := append([]string{s.cfg.FFmpegBinary()}, ffmpegBaseArgs...)
	argv = append(argv,
		"-framerate", strconv.Itoa(extractionFPS),
		"-i", filepath.Join(upscaledDir, "frame_%06d.png"),
	)
	if plan.hasAudio {
		argv = append(argv, "-i", sourcePath)
	}
	argv = append(argv,
		"-vf", fmt.Sprintf("scale=%d:%d,format=yuv420p", plan.targetWidth, plan.targetHeight),
		"-map", "0:v",
	)
	if plan.hasAudio {
		argv = append(argv, "-map", "1:a:0", "-c:a", "copy", "-shortest")
	}
	argv = append(argv, encode...)
	argv = append(argv, "-movflags", "+faststart", "-y", finalPath)

	return job.RunCommand(ctx, argv, jobs.RunOptions{
		Stage:        "assembling",
		TotalSeconds: plan.duration,
		OnProgress:   onProgress,
	})
}

// throughputEvent projects the remaining work from the observed rate.
func throughputEvent(done, total int, elapsed time.Duration) jobs.Event {
	event := jobs.Event{
		Stage:       "upscaling",
		FramesDone:  done,
		TotalFrames: total,
		Percent:     float64(done) / float64(total) * 100,
	}
	if done > 0 && elapsed > 0 {
		rate := float64(done) / elapsed.Seconds()
		event.FPS = fmt.Sprintf("%.1f", rate)
		remaining := time.Duration(float64(total-done) / rate * float64(time.Second))
		event.ETA = remaining.Round(time.Second).String()
	}
	return event
}

func evenDim(dim int) int {
	return dim - dim%2
}
