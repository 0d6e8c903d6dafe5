package encoder

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/render"
	"clipforge/internal/services"
)

// Profile describes the selected encoder. Discovered once, cached for the
// process lifetime; only a restart re-probes.
type Profile struct {
	Codec      string
	IsHardware bool
}

// hardwareCandidates is the fixed probe order. NVENC first (most common on
// render boxes), then QSV, then AMF.
var hardwareCandidates = []string{"h264_nvenc", "h264_qsv", "h264_amf"}

const softwareCodec = "libx264"

// probeTimeout bounds each candidate's capability query. Encode jobs
// themselves carry no timeout; only probing does.
const probeTimeout = 2 * time.Second

type probeFunc func(ctx context.Context, ffmpegBinary, codec string) error

// Selector performs the one-time encoder probe.
type Selector struct {
	ffmpegBinary string
	logger       *slog.Logger
	probe        probeFunc

	once    sync.Once
	profile Profile
	err     error
}

// NewSelector builds a selector around the configured ffmpeg binary.
func NewSelector(ffmpegBinary string, logger *slog.Logger) *Selector {
	return &Selector{
		ffmpegBinary: ffmpegBinary,
		logger:       logging.WithComponent(logger, "encoder"),
		probe:        runCapabilityProbe,
	}
}

// Select returns the cached encoder profile, probing on first use. Probe
// failures on hardware candidates are recovered by falling through; a
// failing software fallback is a fatal misconfiguration.
func (s *Selector) Select(ctx context.Context) (Profile, error) {
	s.once.Do(func() {
		s.profile, s.err = s.detect(ctx)
	})
	return s.profile, s.err
}

func (s *Selector) detect(ctx context.Context) (Profile, error) {
	for _, codec := range hardwareCandidates {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := s.probe(probeCtx, s.ffmpegBinary, codec)
		cancel()
		if err == nil {
			s.logger.Info("hardware encoder selected", logging.String("codec", codec))
			return Profile{Codec: codec, IsHardware: true}, nil
		}
		s.logger.Debug("encoder probe failed",
			logging.String("codec", codec),
			logging.Error(services.Wrap(services.ErrProbe, "encoder", "capability probe", codec, err)))
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := s.probe(probeCtx, s.ffmpegBinary, softwareCodec)
	cancel()
	if err != nil {
		return Profile{}, services.Wrap(services.ErrConfiguration, "encoder", "software fallback probe", "ffmpeg cannot encode with libx264; check the tools.ffmpeg binary", err)
	}
	s.logger.Info("software encoder selected", logging.String("codec", softwareCodec))
	return Profile{Codec: softwareCodec, IsHardware: false}, nil
}

// OutputArgs renders the encoder-specific video output parameters for a
// resolved quality preset. Hardware encoders run variable-bitrate rate
// control with a quality level and no bitrate cap; software uses CRF.
// Thread count is always "use all available".
func (p Profile) OutputArgs(rc render.RateControl) []string {
	var args []string
	switch p.Codec {
	case "h264_nvenc":
		args = []string{"-c:v", p.Codec, "-preset", rc.HardwarePreset, "-rc", "vbr", "-cq", strconv.Itoa(rc.CQ), "-b:v", "0"}
	case "h264_qsv":
		args = []string{"-c:v", p.Codec, "-preset", rc.SoftwarePreset, "-global_quality", strconv.Itoa(rc.CQ), "-b:v", "0"}
	case "h264_amf":
		args = []string{"-c:v", p.Codec, "-rc", "qvbr", "-qvbr_quality_level", strconv.Itoa(rc.CQ), "-b:v", "0"}
	default:
		args = []string{"-c:v", softwareCodec, "-preset", rc.SoftwarePreset, "-crf", strconv.Itoa(rc.CRF)}
	}
	return append(args, "-threads", "0")
}

// runCapabilityProbe encodes one null-source frame with the candidate
// codec. Listing an encoder does not prove the device behind it works, so
// the probe exercises a real (tiny) encode.
func runCapabilityProbe(ctx context.Context, ffmpegBinary, codec string) error {
	cmd := exec.CommandContext(ctx, ffmpegBinary,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "nullsrc=s=128x128:d=0.1",
		"-frames:v", "1",
		"-c:v", codec,
		"-f", "null", "-",
	)
	return cmd.Run()
}
