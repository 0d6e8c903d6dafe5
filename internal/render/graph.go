package render

import (
	"fmt"
	"strings"
)

// overlayPadding is the fixed edge inset, in pixels, for named positions.
const overlayPadding = 20

// chain is one filter chain in a graph: labeled inputs, a filter list,
// labeled outputs.
type chain struct {
	inputs  []string
	filters []string
	outputs []string
}

// Graph is an immutable filter-graph description. It is constructed once
// per request and rendered to ffmpeg -filter_complex syntax at the
// invocation boundary, so the graph itself stays independently testable.
type Graph struct {
	chains []chain
	output string
}

// FilterComplex renders the graph to ffmpeg filter syntax.
func (g Graph) FilterComplex() string {
	rendered := make([]string, 0, len(g.chains))
	for _, c := range g.chains {
		var b strings.Builder
		for _, in := range c.inputs {
			b.WriteString("[" + in + "]")
		}
		b.WriteString(strings.Join(c.filters, ","))
		for _, out := range c.outputs {
			b.WriteString("[" + out + "]")
		}
		rendered = append(rendered, b.String())
	}
	return strings.Join(rendered, ";")
}

// VideoOutput returns the label of the graph's final video stream.
func (g Graph) VideoOutput() string {
	return g.output
}

// pipOverlay is the resolved placement of one overlay input.
type pipOverlay struct {
	size     Expression
	x, y     string
	animated bool
}

// BuildPipGraph builds the compositing graph for a single-overlay request.
// The overlay is scaled against the post-normalization main stream via a
// reference-scaling step, preserving the overlay's own aspect ratio.
func BuildPipGraph(req PipSingle) (Graph, error) {
	if err := req.Validate(); err != nil {
		return Graph{}, err
	}

	overlay := pipOverlay{}
	switch {
	case len(req.Keyframes) > 0:
		size, err := CompileKeyframes(req.Keyframes, AxisSize, "main_w")
		if err != nil {
			return Graph{}, err
		}
		x, err := CompileKeyframes(req.Keyframes, AxisX, "W")
		if err != nil {
			return Graph{}, err
		}
		y, err := CompileKeyframes(req.Keyframes, AxisY, "H")
		if err != nil {
			return Graph{}, err
		}
		overlay.size = size
		overlay.x = x.Render()
		overlay.y = y.Render()
		overlay.animated = size.Animated() || x.Animated() || y.Animated()
	case req.CustomX != nil && req.CustomY != nil:
		overlay.size = ConstantExpression(sizeOrDefault(req.SizeFraction), "main_w")
		overlay.x = "W*" + formatNum(*req.CustomX)
		overlay.y = "H*" + formatNum(*req.CustomY)
	default:
		overlay.size = ConstantExpression(sizeOrDefault(req.SizeFraction), "main_w")
		overlay.x, overlay.y = presetCoordinates(req.Position)
	}

	return buildOverlayChain(req.Options.Resolution, []pipOverlay{overlay})
}

// BuildPipMultiGraph builds a strictly sequential composition chain: each
// overlay's compositing step takes the previous step's output as its base.
// Animation is not supported for multi-overlay requests.
func BuildPipMultiGraph(req PipMulti) (Graph, error) {
	if err := req.Validate(); err != nil {
		return Graph{}, err
	}

	overlays := make([]pipOverlay, 0, len(req.Overlays))
	for _, spec := range req.Overlays {
		x, y := presetCoordinates(spec.Position)
		overlays = append(overlays, pipOverlay{
			size: ConstantExpression(sizeOrDefault(spec.SizeFraction), "main_w"),
			x:    x,
			y:    y,
		})
	}

	return buildOverlayChain(req.Options.Resolution, overlays)
}

func buildOverlayChain(resolution ResolutionProfile, overlays []pipOverlay) (Graph, error) {
	normalize, err := resolution.filters()
	if err != nil {
		return Graph{}, err
	}

	graph := Graph{}
	graph.chains = append(graph.chains, chain{
		inputs:  []string{"0:v"},
		filters: normalize,
		outputs: []string{"base0"},
	})

	base := "base0"
	for i, overlay := range overlays {
		scaled := fmt.Sprintf("ov%d", i+1)
		ref := fmt.Sprintf("ref%d", i+1)
		next := fmt.Sprintf("base%d", i+1)

		// Width follows the size expression against main_w; height
		// preserves the overlay's own aspect ratio. Both are forced even
		// for the normalized pixel format.
		scaleRef := fmt.Sprintf("scale2ref=w='2*trunc((%s)/2)':h='2*trunc(ow/a/2)'", overlay.size.Render())
		if overlay.animated {
			scaleRef += ":eval=frame"
		}
		graph.chains = append(graph.chains, chain{
			inputs:  []string{fmt.Sprintf("%d:v", i+1), base},
			filters: []string{scaleRef},
			outputs: []string{scaled, ref},
		})

		graph.chains = append(graph.chains, chain{
			inputs:  []string{ref, scaled},
			filters: []string{fmt.Sprintf("overlay=x='%s':y='%s'", overlay.x, overlay.y)},
			outputs: []string{next},
		})
		base = next
	}

	graph.output = base
	return graph, nil
}

func presetCoordinates(position Position) (x, y string) {
	pad := fmt.Sprintf("%d", overlayPadding)
	switch position {
	case PositionTopLeft:
		return pad, pad
	case PositionTopRight:
		return "W-w-" + pad, pad
	case PositionBottomLeft:
		return pad, "H-h-" + pad
	case PositionBottomRight:
		return "W-w-" + pad, "H-h-" + pad
	default:
		return "(W-w)/2", "(H-h)/2"
	}
}

func sizeOrDefault(fraction float64) float64 {
	if fraction <= 0 {
		return DefaultSizeFraction
	}
	return fraction
}
