package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipforge/internal/pipeline"
	"clipforge/internal/render"
)

func newTrimCommand(ctx *commandContext) *cobra.Command {
	var (
		input      string
		start, end float64
		output     string
		resolution string
		quality    string
	)

	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Export a single trimmed clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ctx.renderOptions(resolution, quality)
			if err != nil {
				return err
			}
			req := render.Trim{
				Segment: render.Segment{SourcePath: input, StartSeconds: start, EndSeconds: end},
				Options: opts,
			}
			return ctx.runExport(cmd, req, output)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Source media file")
	cmd.Flags().Float64Var(&start, "start", 0, "Clip start in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "Clip end in seconds")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	addProfileFlags(cmd, &resolution, &quality)
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newConcatCommand(ctx *commandContext) *cobra.Command {
	var (
		segments   []string
		output     string
		resolution string
		quality    string
	)

	cmd := &cobra.Command{
		Use:   "concat",
		Short: "Join trimmed segments into one clip",
		Long:  "Each --segment takes the form path:start:end with times in seconds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ctx.renderOptions(resolution, quality)
			if err != nil {
				return err
			}
			parsed := make([]render.Segment, 0, len(segments))
			for _, raw := range segments {
				segment, err := parseSegmentFlag(raw)
				if err != nil {
					return err
				}
				parsed = append(parsed, segment)
			}
			return ctx.runExport(cmd, render.Concat{Segments: parsed, Options: opts}, output)
		},
	}

	cmd.Flags().StringArrayVarP(&segments, "segment", "s", nil, "Segment as path:start:end (repeatable, in order)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	addProfileFlags(cmd, &resolution, &quality)
	_ = cmd.MarkFlagRequired("segment")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newPipCommand(ctx *commandContext) *cobra.Command {
	var (
		mainPath         string
		start, end       float64
		overlays         []string
		overlayPositions []string
		overlaySizes     []float64
		position         string
		customX, customY float64
		size             float64
		keyframes        []string
		output           string
		resolution       string
		quality          string
	)

	cmd := &cobra.Command{
		Use:   "pip",
		Short: "Composite picture-in-picture overlays onto a main clip",
		Long: `With one --overlay, placement is a named --position, a fractional
--x/--y pair, or animated --keyframe entries (t:x:y:size, repeatable).
With several overlays, per-overlay --overlay-position and --overlay-size
apply in order and animation is unavailable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ctx.renderOptions(resolution, quality)
			if err != nil {
				return err
			}
			mainSegment := render.Segment{SourcePath: mainPath, StartSeconds: start, EndSeconds: end}

			if len(overlays) > 1 {
				if len(keyframes) > 0 || cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
					return fmt.Errorf("keyframes and custom coordinates only apply to a single overlay")
				}
				specs := make([]render.OverlaySpec, 0, len(overlays))
				for i, path := range overlays {
					spec := render.OverlaySpec{SourcePath: path}
					if i < len(overlayPositions) {
						spec.Position, err = render.ParsePosition(overlayPositions[i])
						if err != nil {
							return err
						}
					}
					if i < len(overlaySizes) {
						spec.SizeFraction = overlaySizes[i]
					}
					specs = append(specs, spec)
				}
				return ctx.runExport(cmd, render.PipMulti{Main: mainSegment, Overlays: specs, Options: opts}, output)
			}

			req := render.PipSingle{
				Main:         mainSegment,
				SizeFraction: size,
				Options:      opts,
			}
			if len(overlays) == 1 {
				req.Overlay = overlays[0]
			}
			switch {
			case len(keyframes) > 0:
				for _, raw := range keyframes {
					frame, err := parseKeyframeFlag(raw)
					if err != nil {
						return err
					}
					req.Keyframes = append(req.Keyframes, frame)
				}
			case cmd.Flags().Changed("x") || cmd.Flags().Changed("y"):
				req.CustomX = &customX
				req.CustomY = &customY
			default:
				req.Position, err = render.ParsePosition(position)
				if err != nil {
					return err
				}
			}
			return ctx.runExport(cmd, req, output)
		},
	}

	cmd.Flags().StringVarP(&mainPath, "main", "m", "", "Main source file")
	cmd.Flags().Float64Var(&start, "start", 0, "Main clip start in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "Main clip end in seconds")
	cmd.Flags().StringArrayVar(&overlays, "overlay", nil, "Overlay source file (repeatable)")
	cmd.Flags().StringArrayVar(&overlayPositions, "overlay-position", nil, "Per-overlay position, in --overlay order")
	cmd.Flags().Float64SliceVar(&overlaySizes, "overlay-size", nil, "Per-overlay size fraction, in --overlay order")
	cmd.Flags().StringVar(&position, "position", "center", "Overlay position: top-left, top-right, bottom-left, bottom-right, center")
	cmd.Flags().Float64Var(&customX, "x", 0, "Overlay x as a fraction of the main width")
	cmd.Flags().Float64Var(&customY, "y", 0, "Overlay y as a fraction of the main height")
	cmd.Flags().Float64Var(&size, "size", 0, "Overlay width as a fraction of the main width")
	cmd.Flags().StringArrayVar(&keyframes, "keyframe", nil, "Animated keyframe as t:x:y:size (repeatable, ascending t)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	addProfileFlags(cmd, &resolution, &quality)
	_ = cmd.MarkFlagRequired("main")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("overlay")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func addProfileFlags(cmd *cobra.Command, resolution, quality *string) {
	cmd.Flags().StringVarP(resolution, "resolution", "r", "", "Resolution profile: 360p, 480p, 720p, 1080p, source")
	cmd.Flags().StringVarP(quality, "quality", "q", "", "Quality preset: fast, medium, slow")
}

// renderOptions resolves the profile pair, falling back to configured
// defaults for unset flags.
func (c *commandContext) renderOptions(resolutionFlag, qualityFlag string) (render.Options, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return render.Options{}, err
	}
	if resolutionFlag == "" {
		resolutionFlag = cfg.Render.Resolution
	}
	if qualityFlag == "" {
		qualityFlag = cfg.Render.Quality
	}
	resolution, err := render.ParseResolutionProfile(resolutionFlag)
	if err != nil {
		return render.Options{}, err
	}
	quality, err := render.ParseQualityPreset(qualityFlag)
	if err != nil {
		return render.Options{}, err
	}
	return render.Options{Resolution: resolution, Quality: quality}, nil
}

func (c *commandContext) runExport(cmd *cobra.Command, req render.Request, output string) error {
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	return c.withService(func(ctx context.Context, svc *pipeline.Service) error {
		renderer := newProgressRenderer(logger)
		finalPath, err := svc.Export(ctx, req, output, renderer.Handle)
		renderer.Finish()
		if err != nil {
			return err
		}
		printOutput(cmd, finalPath)
		return nil
	})
}

func printOutput(cmd *cobra.Command, path string) {
	out := cmd.OutOrStdout()
	if info, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Wrote %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
		return
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
}

// parseSegmentFlag parses path:start:end, splitting from the right so
// paths containing colons still work.
func parseSegmentFlag(raw string) (render.Segment, error) {
	endIdx := strings.LastIndex(raw, ":")
	if endIdx <= 0 {
		return render.Segment{}, fmt.Errorf("segment %q: want path:start:end", raw)
	}
	startIdx := strings.LastIndex(raw[:endIdx], ":")
	if startIdx <= 0 {
		return render.Segment{}, fmt.Errorf("segment %q: want path:start:end", raw)
	}
	start, err := strconv.ParseFloat(raw[startIdx+1:endIdx], 64)
	if err != nil {
		return render.Segment{}, fmt.Errorf("segment %q: bad start: %w", raw, err)
	}
	end, err := strconv.ParseFloat(raw[endIdx+1:], 64)
	if err != nil {
		return render.Segment{}, fmt.Errorf("segment %q: bad end: %w", raw, err)
	}
	return render.Segment{SourcePath: raw[:startIdx], StartSeconds: start, EndSeconds: end}, nil
}

// parseKeyframeFlag parses t:x:y:size with all fields as decimals.
func parseKeyframeFlag(raw string) (render.Keyframe, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return render.Keyframe{}, fmt.Errorf("keyframe %q: want t:x:y:size", raw)
	}
	values := make([]float64, 4)
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return render.Keyframe{}, fmt.Errorf("keyframe %q: field %d: %w", raw, i+1, err)
		}
		values[i] = value
	}
	return render.Keyframe{
		TimeSeconds:  values[0],
		XFraction:    values[1],
		YFraction:    values[2],
		SizeFraction: values[3],
	}, nil
}
