package main

import (
	"context"

	"github.com/spf13/cobra"

	"clipforge/internal/pipeline"
)

func newEnhanceCommand(ctx *commandContext) *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "AI-upscale a clip toward 1080p",
		Long: `Extracts frames at 30fps, upscales them in batches through the
configured upscaler, and reassembles the result with the source audio.
The multiplier is chosen automatically so the output never exceeds 1080p.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withService(func(runCtx context.Context, svc *pipeline.Service) error {
				renderer := newProgressRenderer(logger)
				finalPath, err := svc.Upscale(runCtx, input, output, renderer.Handle)
				renderer.Finish()
				if err != nil {
					return err
				}
				printOutput(cmd, finalPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Source media file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newPosterCommand(ctx *commandContext) *cobra.Command {
	var (
		input  string
		output string
		at     float64
	)

	cmd := &cobra.Command{
		Use:   "poster",
		Short: "Extract a poster frame from a clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(runCtx context.Context, svc *pipeline.Service) error {
				finalPath, err := svc.Thumbnail(runCtx, input, output, at)
				if err != nil {
					return err
				}
				printOutput(cmd, finalPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Source media file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination image file")
	cmd.Flags().Float64Var(&at, "at", 0, "Timestamp in seconds")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
