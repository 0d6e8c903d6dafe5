package render

import (
	"fmt"
	"strconv"
	"strings"

	"clipforge/internal/services"
)

// Keyframe is a user-specified control point for animated picture-in-
// picture placement. Fractions are relative to the post-normalization main
// frame's width and height; size is dimensionless.
type Keyframe struct {
	TimeSeconds  float64
	XFraction    float64
	YFraction    float64
	SizeFraction float64
}

// Axis selects which keyframe component an expression is compiled from.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisSize
)

// DefaultSizeFraction is the overlay size used when no keyframes and no
// explicit fraction are given.
const DefaultSizeFraction = 0.25

// validateKeyframes rejects unordered or duplicate-time keyframe lists.
// A duplicate time would serialize a division by zero into the generated
// expression, so it is refused here rather than left to evaluate at run
// time.
func validateKeyframes(frames []Keyframe) error {
	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1].TimeSeconds, frames[i].TimeSeconds
		if cur == prev {
			return services.Wrap(services.ErrInvalidRequest, "keyframes", "validate", fmt.Sprintf("duplicate keyframe time %.3f", cur), nil)
		}
		if cur < prev {
			return services.Wrap(services.ErrInvalidRequest, "keyframes", "validate", fmt.Sprintf("keyframe times must increase (%.3f after %.3f)", cur, prev), nil)
		}
	}
	return nil
}

type ramp struct {
	t0, t1 float64
	v0, v1 float64
}

// Expression is a compiled piecewise-linear function of time. It stays in
// coefficient form until Render serializes it to ffmpeg expression syntax;
// Evaluate makes the pieces testable without string parsing.
type Expression struct {
	symbol   string
	constant float64
	ramps    []ramp
}

// CompileKeyframes turns an ordered keyframe list into a piecewise-linear
// expression over continuous time. Zero keyframes compile to the axis
// default (size 0.25, position 0); one keyframe compiles to a constant.
// With two or more, consecutive pairs become linear ramps selected by
// nested time conditionals. Times outside the keyframed range extrapolate
// along the first/last ramp rather than clamping; callers wanting
// hold-at-edge behavior inject keyframes at the timeline boundaries.
func CompileKeyframes(frames []Keyframe, axis Axis, symbol string) (Expression, error) {
	if err := validateKeyframes(frames); err != nil {
		return Expression{}, err
	}

	expr := Expression{symbol: symbol}
	switch len(frames) {
	case 0:
		if axis == AxisSize {
			expr.constant = DefaultSizeFraction
		}
		return expr, nil
	case 1:
		expr.constant = axisValue(frames[0], axis)
		return expr, nil
	}

	expr.ramps = make([]ramp, 0, len(frames)-1)
	for i := 0; i < len(frames)-1; i++ {
		expr.ramps = append(expr.ramps, ramp{
			t0: frames[i].TimeSeconds,
			t1: frames[i+1].TimeSeconds,
			v0: axisValue(frames[i], axis),
			v1: axisValue(frames[i+1], axis),
		})
	}
	return expr, nil
}

// ConstantExpression wraps a fixed fractional value, used when a request
// supplies an explicit size or position instead of keyframes.
func ConstantExpression(value float64, symbol string) Expression {
	return Expression{symbol: symbol, constant: value}
}

// Animated reports whether the expression varies with time.
func (e Expression) Animated() bool {
	return len(e.ramps) > 0
}

// Evaluate returns the fractional value at time t. The base-dimension
// symbol multiplication happens in the serialized form only.
func (e Expression) Evaluate(t float64) float64 {
	if len(e.ramps) == 0 {
		return e.constant
	}
	segment := e.ramps[len(e.ramps)-1]
	for _, r := range e.ramps {
		if t < r.t1 {
			segment = r
			break
		}
	}
	return segment.v0 + (segment.v1-segment.v0)*(t-segment.t0)/(segment.t1-segment.t0)
}

// Render serializes the expression to ffmpeg expression syntax, nesting
// interval conditionals earliest-to-latest so evaluation descends into the
// first matching interval.
func (e Expression) Render() string {
	if len(e.ramps) == 0 {
		return e.scaled(e.constant)
	}
	rendered := e.renderRamp(e.ramps[len(e.ramps)-1])
	for i := len(e.ramps) - 2; i >= 0; i-- {
		rendered = fmt.Sprintf("if(lt(t,%s),%s,%s)", formatNum(e.ramps[i].t1), e.renderRamp(e.ramps[i]), rendered)
	}
	return rendered
}

func (e Expression) renderRamp(r ramp) string {
	return fmt.Sprintf("%s+(%s-%s)*(t-%s)/(%s-%s)",
		e.scaled(r.v0), e.scaled(r.v1), e.scaled(r.v0),
		formatNum(r.t0), formatNum(r.t1), formatNum(r.t0))
}

func (e Expression) scaled(value float64) string {
	if strings.TrimSpace(e.symbol) == "" {
		return formatNum(value)
	}
	return e.symbol + "*" + formatNum(value)
}

func axisValue(frame Keyframe, axis Axis) float64 {
	switch axis {
	case AxisX:
		return frame.XFraction
	case AxisY:
		return frame.YFraction
	default:
		return frame.SizeFraction
	}
}

func formatNum(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
