package encoder

import (
	"context"
	"errors"
	"testing"

	"clipforge/internal/logging"
	"clipforge/internal/render"
	"clipforge/internal/services"
)

func newTestSelector(probe probeFunc) *Selector {
	s := NewSelector("ffmpeg", logging.NewNop())
	s.probe = probe
	return s
}

func TestSelectPrefersFirstWorkingCandidate(t *testing.T) {
	var probed []string
	s := newTestSelector(func(ctx context.Context, binary, codec string) error {
		probed = append(probed, codec)
		if codec == "h264_qsv" {
			return nil
		}
		return errors.New("unavailable")
	})

	profile, err := s.Select(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if profile.Codec != "h264_qsv" || !profile.IsHardware {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if len(probed) != 2 || probed[0] != "h264_nvenc" {
		t.Fatalf("probe order wrong: %v", probed)
	}
}

func TestSelectCachesResult(t *testing.T) {
	calls := 0
	s := newTestSelector(func(ctx context.Context, binary, codec string) error {
		calls++
		return nil
	})

	if _, err := s.Select(context.Background()); err != nil {
		t.Fatalf("first select: %v", err)
	}
	if _, err := s.Select(context.Background()); err != nil {
		t.Fatalf("second select: %v", err)
	}
	if calls != 1 {
		t.Fatalf("probing must happen at most once per process, got %d calls", calls)
	}
}

func TestSelectFallsBackToSoftware(t *testing.T) {
	s := newTestSelector(func(ctx context.Context, binary, codec string) error {
		if codec == "libx264" {
			return nil
		}
		return errors.New("no hardware")
	})

	profile, err := s.Select(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if profile.Codec != "libx264" || profile.IsHardware {
		t.Fatalf("expected software fallback, got %+v", profile)
	}
}

func TestSelectFatalWhenSoftwareProbeFails(t *testing.T) {
	s := newTestSelector(func(ctx context.Context, binary, codec string) error {
		return errors.New("broken install")
	})

	if _, err := s.Select(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOutputArgsShapes(t *testing.T) {
	rc, err := render.QualityMedium.RateControl()
	if err != nil {
		t.Fatalf("rate control: %v", err)
	}

	hw := Profile{Codec: "h264_nvenc", IsHardware: true}.OutputArgs(rc)
	if !containsPair(hw, "-rc", "vbr") || !containsPair(hw, "-b:v", "0") {
		t.Fatalf("hardware args missing vbr/uncapped bitrate: %v", hw)
	}
	if !containsPair(hw, "-cq", "23") {
		t.Fatalf("hardware args missing quality level: %v", hw)
	}

	sw := Profile{Codec: "libx264"}.OutputArgs(rc)
	if !containsPair(sw, "-crf", "23") || !containsPair(sw, "-preset", "medium") {
		t.Fatalf("software args missing CRF model: %v", sw)
	}

	for _, args := range [][]string{hw, sw} {
		if !containsPair(args, "-threads", "0") {
			t.Fatalf("thread count must be use-all-available: %v", args)
		}
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
