package render

import (
	"fmt"
	"strings"

	"clipforge/internal/services"
)

// Segment is a time-bounded excerpt of a source media file. Bounds are in
// seconds; callers are responsible for keeping them inside the source
// duration.
type Segment struct {
	SourcePath   string
	StartSeconds float64
	EndSeconds   float64
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndSeconds - s.StartSeconds
}

func (s Segment) validate(stage string) error {
	if strings.TrimSpace(s.SourcePath) == "" {
		return services.Wrap(services.ErrInvalidRequest, stage, "validate segment", "source path is empty", nil)
	}
	if s.StartSeconds < 0 {
		return services.Wrap(services.ErrInvalidRequest, stage, "validate segment", fmt.Sprintf("start %.3f is negative", s.StartSeconds), nil)
	}
	if s.EndSeconds <= s.StartSeconds {
		return services.Wrap(services.ErrInvalidRequest, stage, "validate segment", fmt.Sprintf("end %.3f must exceed start %.3f", s.EndSeconds, s.StartSeconds), nil)
	}
	return nil
}

// Position names a fixed overlay placement with edge padding.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCenter      Position = "center"
)

// ParsePosition validates a user-supplied position name.
func ParsePosition(value string) (Position, error) {
	switch Position(strings.ToLower(strings.TrimSpace(value))) {
	case PositionTopLeft:
		return PositionTopLeft, nil
	case PositionTopRight:
		return PositionTopRight, nil
	case PositionBottomLeft:
		return PositionBottomLeft, nil
	case PositionBottomRight:
		return PositionBottomRight, nil
	case PositionCenter, "":
		return PositionCenter, nil
	default:
		return "", services.Wrap(services.ErrInvalidRequest, "pip", "parse position", fmt.Sprintf("unknown position %q", value), nil)
	}
}

// Options carries the profile pair every request resolves against.
type Options struct {
	Resolution ResolutionProfile
	Quality    QualityPreset
}

func (o Options) validate(stage string) error {
	if _, err := o.Resolution.filters(); err != nil {
		return err
	}
	if _, err := o.Quality.RateControl(); err != nil {
		return err
	}
	_ = stage
	return nil
}

// Kind discriminates render request variants.
type Kind string

const (
	KindTrim      Kind = "trim"
	KindConcat    Kind = "concat"
	KindPipSingle Kind = "pip"
	KindPipMulti  Kind = "pip-multi"
)

// Request is the tagged union of render request variants. Requests are
// pure data; validation never spawns a process.
type Request interface {
	Kind() Kind
	Validate() error
}

// Trim renders a single segment with normalization and no compositing.
type Trim struct {
	Segment Segment
	Options Options
}

func (t Trim) Kind() Kind { return KindTrim }

func (t Trim) Validate() error {
	if err := t.Segment.validate("trim"); err != nil {
		return err
	}
	return t.Options.validate("trim")
}

// Concat renders an ordered segment list via two-phase normalization and
// lossless concatenation.
type Concat struct {
	Segments []Segment
	Options  Options
}

func (c Concat) Kind() Kind { return KindConcat }

func (c Concat) Validate() error {
	if len(c.Segments) == 0 {
		return services.Wrap(services.ErrInvalidRequest, "concat", "validate segments", "at least one segment required", nil)
	}
	for i, segment := range c.Segments {
		if err := segment.validate(fmt.Sprintf("concat segment %d", i+1)); err != nil {
			return err
		}
	}
	return c.Options.validate("concat")
}

// TotalDuration returns the summed trimmed duration of all segments.
func (c Concat) TotalDuration() float64 {
	total := 0.0
	for _, segment := range c.Segments {
		total += segment.Duration()
	}
	return total
}

// PipSingle composites one overlay over a main source. Exactly one of the
// position forms applies: a named preset, a fractional coordinate pair, or
// keyframes. Keyframes also drive the overlay size when present.
type PipSingle struct {
	Main    Segment
	Overlay string

	Position     Position
	CustomX      *float64
	CustomY      *float64
	Keyframes    []Keyframe
	SizeFraction float64

	Options Options
}

func (p PipSingle) Kind() Kind { return KindPipSingle }

func (p PipSingle) Validate() error {
	if err := p.Main.validate("pip"); err != nil {
		return err
	}
	if strings.TrimSpace(p.Overlay) == "" {
		return services.Wrap(services.ErrInvalidRequest, "pip", "validate overlays", "at least one overlay required", nil)
	}
	if (p.CustomX == nil) != (p.CustomY == nil) {
		return services.Wrap(services.ErrInvalidRequest, "pip", "validate position", "custom position requires both x and y", nil)
	}
	if len(p.Keyframes) > 0 && p.CustomX != nil {
		return services.Wrap(services.ErrInvalidRequest, "pip", "validate position", "keyframes and a custom position are mutually exclusive", nil)
	}
	if p.SizeFraction < 0 || p.SizeFraction > 1 {
		return services.Wrap(services.ErrInvalidRequest, "pip", "validate size", fmt.Sprintf("size fraction %.3f outside (0,1]", p.SizeFraction), nil)
	}
	if err := validateKeyframes(p.Keyframes); err != nil {
		return err
	}
	return p.Options.validate("pip")
}

// OverlaySpec describes one overlay in a multi-overlay composition.
type OverlaySpec struct {
	SourcePath   string
	Position     Position
	SizeFraction float64
}

// PipMulti composites two or more overlays sequentially; each compositing
// step's output becomes the next step's base. Keyframe animation is not
// supported in this variant.
type PipMulti struct {
	Main     Segment
	Overlays []OverlaySpec
	Options  Options
}

func (p PipMulti) Kind() Kind { return KindPipMulti }

func (p PipMulti) Validate() error {
	if err := p.Main.validate("pip-multi"); err != nil {
		return err
	}
	if len(p.Overlays) == 0 {
		return services.Wrap(services.ErrInvalidRequest, "pip-multi", "validate overlays", "at least one overlay required", nil)
	}
	for i, overlay := range p.Overlays {
		if strings.TrimSpace(overlay.SourcePath) == "" {
			return services.Wrap(services.ErrInvalidRequest, "pip-multi", "validate overlays", fmt.Sprintf("overlay %d has no source path", i+1), nil)
		}
		if overlay.SizeFraction < 0 || overlay.SizeFraction > 1 {
			return services.Wrap(services.ErrInvalidRequest, "pip-multi", "validate size", fmt.Sprintf("overlay %d size fraction outside (0,1]", i+1), nil)
		}
	}
	return p.Options.validate("pip-multi")
}
