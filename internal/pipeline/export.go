package pipeline

import (
	"context"
	"strconv"
	"time"

	"clipforge/internal/fileutil"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/render"
	"clipforge/internal/services"
)

// ffmpegBaseArgs are shared by every invocation: quiet logs, machine
// progress on stdout, and no interactive prompts.
var ffmpegBaseArgs = []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-progress", "pipe:1"}

// audioEncodeArgs is the fixed output audio profile: AAC, 48kHz stereo at
// 128kbps, for predictable concatenation and broad player support.
var audioEncodeArgs = []string{"-c:a", "aac", "-ar", "48000", "-ac", "2", "-b:a", "128k"}

// silenceSource is the generated audio input used when neither the main
// source nor the overlay carries an audio stream.
const silenceSource = "anullsrc=channel_layout=stereo:sample_rate=48000"

// Export runs a validated render request to completion and returns the
// final output path, which is collision-adjusted rather than overwritten.
func (s *Service) Export(ctx context.Context, req render.Request, outputPath string, onProgress jobs.ProgressFunc) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	finalPath := fileutil.NextAvailablePath(outputPath)

	var (
		argv  []string
		total float64
		err   error
	)
	switch typed := req.(type) {
	case render.Trim:
		argv, err = s.buildTrimArgs(ctx, typed, finalPath)
		total = typed.Segment.Duration()
	case render.Concat:
		return finalPath, s.runConcat(ctx, typed, finalPath, onProgress)
	case render.PipSingle:
		argv, err = s.buildPipSingleArgs(ctx, typed, finalPath)
		total = typed.Main.Duration()
	case render.PipMulti:
		argv, err = s.buildPipMultiArgs(ctx, typed, finalPath)
		total = typed.Main.Duration()
	default:
		return "", services.Wrap(services.ErrInvalidRequest, string(req.Kind()), "export", "unsupported request kind", nil)
	}
	if err != nil {
		return "", err
	}

	jobCtx, job, err := s.begin(ctx, jobs.CategoryExport, false)
	if err != nil {
		return "", err
	}
	started := time.Now()
	s.logger.Info("export started",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("kind", string(req.Kind())),
		logging.String("output", finalPath))

	runErr := job.RunCommand(jobCtx, argv, jobs.RunOptions{
		Stage:        string(req.Kind()),
		TotalSeconds: total,
		OnProgress:   onProgress,
	})
	s.finish(job, string(req.Kind()), finalPath, started, runErr)
	return finalPath, runErr
}

// encodeArgs resolves the cached encoder profile against the request's
// quality preset.
func (s *Service) encodeArgs(ctx context.Context, quality render.QualityPreset) ([]string, error) {
	profile, err := s.selector.Select(ctx)
	if err != nil {
		return nil, err
	}
	rc, err := quality.RateControl()
	if err != nil {
		return nil, err
	}
	return profile.OutputArgs(rc), nil
}

func (s *Service) buildTrimArgs(ctx context.Context, req render.Trim, outputPath string) ([]string, error) {
	filter, err := req.Options.Resolution.NormalizeFilter()
	if err != nil {
		return nil, err
	}
	encode, err := s.encodeArgs(ctx, req.Options.Quality)
	if err != nil {
		return nil, err
	}

	argv := append([]string{s.cfg.FFmpegBinary()}, ffmpegBaseArgs...)
	argv = append(argv, segmentInputArgs(req.Segment)...)
	argv = append(argv, "-vf", filter)
	argv = append(argv, encode...)
	argv = append(argv, audioEncodeArgs...)
	return append(argv, "-movflags", "+faststart", "-y", outputPath), nil
}

func (s *Service) buildPipSingleArgs(ctx context.Context, req render.PipSingle, outputPath string) ([]string, error) {
	graph, err := render.BuildPipGraph(req)
	if err != nil {
		return nil, err
	}
	return s.assemblePipArgs(ctx, req.Main, []string{req.Overlay}, req.Options.Quality, graph, outputPath)
}

func (s *Service) buildPipMultiArgs(ctx context.Context, req render.PipMulti, outputPath string) ([]string, error) {
	graph, err := render.BuildPipMultiGraph(req)
	if err != nil {
		return nil, err
	}
	overlays := make([]string, 0, len(req.Overlays))
	for _, spec := range req.Overlays {
		overlays = append(overlays, spec.SourcePath)
	}
	return s.assemblePipArgs(ctx, req.Main, overlays, req.Options.Quality, graph, outputPath)
}

// assemblePipArgs maps the filter graph onto concrete inputs and picks
// exactly one audio stream: main audio, then the first overlay's audio,
// then generated silence bounded by -shortest.
func (s *Service) assemblePipArgs(ctx context.Context, main render.Segment, overlays []string, quality render.QualityPreset, graph render.Graph, outputPath string) ([]string, error) {
	encode, err := s.encodeArgs(ctx, quality)
	if err != nil {
		return nil, err
	}

	argv := append([]string{s.cfg.FFmpegBinary()}, ffmpegBaseArgs...)
	argv = append(argv, segmentInputArgs(main)...)
	for _, overlay := range overlays {
		argv = append(argv, "-i", overlay)
	}

	audioMap, silent, err := s.selectAudioStream(ctx, main.SourcePath, overlays[0], len(overlays)+1)
	if err != nil {
		return nil, err
	}
	if silent {
		argv = append(argv, "-f", "lavfi", "-i", silenceSource)
	}

	argv = append(argv,
		"-filter_complex", graph.FilterComplex(),
		"-map", "["+graph.VideoOutput()+"]",
		"-map", audioMap,
	)
	argv = append(argv, encode...)
	argv = append(argv, audioEncodeArgs...)
	if silent {
		argv = append(argv, "-shortest")
	}
	return append(argv, "-movflags", "+faststart", "-y", outputPath), nil
}

// selectAudioStream probes the main and first-overlay sources and returns
// the -map value plus whether a silence input must be appended at
// silenceIndex.
func (s *Service) selectAudioStream(ctx context.Context, mainPath, overlayPath string, silenceIndex int) (string, bool, error) {
	mainInfo, err := ffprobe.Inspect(ctx, s.cfg.FFprobeBinary(), mainPath)
	if err != nil {
		return "", false, services.Wrap(services.ErrProbe, "pip", "probe main source", mainPath, err)
	}
	if mainInfo.HasAudio() {
		return "0:a:0", false, nil
	}

	overlayInfo, err := ffprobe.Inspect(ctx, s.cfg.FFprobeBinary(), overlayPath)
	if err != nil {
		return "", false, services.Wrap(services.ErrProbe, "pip", "probe overlay source", overlayPath, err)
	}
	if overlayInfo.HasAudio() {
		return "1:a:0", false, nil
	}

	return strconv.Itoa(silenceIndex) + ":a:0", true, nil
}

// segmentInputArgs seeks before the input for fast keyframe seeking and
// bounds the read to the trimmed duration.
func segmentInputArgs(segment render.Segment) []string {
	return []string{
		"-ss", formatSeconds(segment.StartSeconds),
		"-t", formatSeconds(segment.Duration()),
		"-i", segment.SourcePath,
	}
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
