// Package pipeline orchestrates render jobs end to end: it owns the job
// registry, the encoder selection, and the history store, and turns
// validated render requests into supervised ffmpeg invocations.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/encoder"
	"clipforge/internal/history"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/render"
)

// Service is the render pipeline facade. One instance per process; the
// underlying registry holds the staging-directory lock for its lifetime.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *jobs.Registry
	selector *encoder.Selector
	store    *history.Store // nil when history is disabled

	mu      sync.Mutex
	cancels map[jobs.Category]context.CancelFunc
}

// New wires the pipeline from configuration. The history store is opened
// lazily-tolerant: a failure to open it disables history with a warning
// instead of blocking renders.
func New(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	registry, err := jobs.NewRegistry(cfg.StagingDir(), logger)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "pipeline"),
		registry: registry,
		selector: encoder.NewSelector(cfg.FFmpegBinary(), logger),
		cancels:  make(map[jobs.Category]context.CancelFunc),
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			svc.logger.Warn("history disabled", logging.Error(err))
		} else {
			svc.store = store
		}
	}
	return svc, nil
}

// Close releases the staging lock and the history database.
func (s *Service) Close() error {
	var firstErr error
	if s.store != nil {
		firstErr = s.store.Close()
	}
	if err := s.registry.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// History returns the open history store, or nil when disabled.
func (s *Service) History() *history.Store {
	return s.store
}

// Cancel hard-kills the category's in-flight job, if any, and reports
// whether one was running.
func (s *Service) Cancel(category jobs.Category) bool {
	s.mu.Lock()
	cancel := s.cancels[category]
	delete(s.cancels, category)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return s.registry.Cancel(category)
}

// begin claims the category slot and derives a cancellable context that
// Cancel can fire even while batch work runs outside the job's own
// process slot.
func (s *Service) begin(ctx context.Context, category jobs.Category, withTempDir bool) (context.Context, *jobs.Job, error) {
	job, err := s.registry.Begin(category, withTempDir)
	if err != nil {
		return nil, nil, err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[category] = cancel
	s.mu.Unlock()
	return jobCtx, job, nil
}

// finish releases the cancel slot, moves the job to its terminal state,
// and records the outcome.
func (s *Service) finish(job *jobs.Job, kind, outputPath string, started time.Time, err error) {
	s.mu.Lock()
	if cancel := s.cancels[job.Category]; cancel != nil {
		cancel()
		delete(s.cancels, job.Category)
	}
	s.mu.Unlock()

	state := job.Finish(err)
	s.record(job, kind, outputPath, state, started, err)
}

// qualityFromConfig resolves the configured default quality preset,
// falling back to medium when the config value is unparseable.
func (s *Service) qualityFromConfig() render.QualityPreset {
	preset, err := render.ParseQualityPreset(s.cfg.Render.Quality)
	if err != nil {
		return render.QualityMedium
	}
	return preset
}

func (s *Service) record(job *jobs.Job, kind, outputPath string, state jobs.State, started time.Time, err error) {
	if s.store == nil {
		return
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	_, recordErr := s.store.Add(context.Background(), history.Record{
		JobID:      job.ID,
		Category:   string(job.Category),
		Kind:       kind,
		OutputPath: outputPath,
		State:      string(state),
		Detail:     detail,
		Duration:   time.Since(started),
	})
	if recordErr != nil {
		s.logger.Warn("failed to record job history",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(recordErr))
	}
}
