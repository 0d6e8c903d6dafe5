package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
)

// progressRenderer adapts pipeline events to the terminal: a live bar on
// a TTY, sampled log lines otherwise.
type progressRenderer struct {
	bar     *progressbar.ProgressBar
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	stage   string
}

func newProgressRenderer(logger *slog.Logger) *progressRenderer {
	r := &progressRenderer{
		logger:  logger,
		sampler: logging.NewProgressSampler(5),
	}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("starting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetWidth(30),
		)
	}
	return r
}

// Handle is safe to pass as a jobs.ProgressFunc.
func (r *progressRenderer) Handle(event jobs.Event) {
	if r.bar != nil {
		if event.Stage != r.stage {
			r.stage = event.Stage
			r.bar.Describe(describeStage(event))
		} else if event.ETA != "" || event.FPS != "" {
			r.bar.Describe(describeStage(event))
		}
		if event.Percent >= 0 {
			_ = r.bar.Set(int(event.Percent))
		}
		return
	}

	if !r.sampler.ShouldLog(event.Percent, event.Stage) {
		return
	}
	attrs := []logging.Attr{
		logging.String("stage", event.Stage),
		logging.Float64("percent", event.Percent),
	}
	if event.TotalFrames > 0 {
		attrs = append(attrs,
			logging.Int("frames_done", event.FramesDone),
			logging.Int("total_frames", event.TotalFrames))
	}
	if event.ETA != "" {
		attrs = append(attrs, logging.String("eta", event.ETA))
	}
	if event.FPS != "" {
		attrs = append(attrs, logging.String("fps", event.FPS))
	}
	r.logger.Info("progress", logging.Args(attrs...)...)
}

// Finish clears the bar so the final status line prints cleanly.
func (r *progressRenderer) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

func describeStage(event jobs.Event) string {
	if event.ETA != "" {
		return fmt.Sprintf("%s (eta %s, %s fps)", event.Stage, event.ETA, event.FPS)
	}
	return event.Stage
}
