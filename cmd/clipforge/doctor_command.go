package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/deps"
	"clipforge/internal/encoder"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var probeEncoder bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and encoder support",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.CheckBinaries(deps.FromConfig(cfg))
			statuses = append(statuses, deps.CheckModelsDir(cfg.ModelsDir()))

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if status.Optional {
						state = "missing (optional)"
					}
				}
				rows = append(rows, []string{status.Name, state, status.Command, status.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Dependency", "Status", "Command", "Detail"},
				rows,
				nil,
			))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %v", missing)
			}

			if probeEncoder {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				profile, err := encoder.NewSelector(cfg.FFmpegBinary(), logger).Select(cmd.Context())
				if err != nil {
					return fmt.Errorf("encoder probe: %w", err)
				}
				kind := "software"
				if profile.IsHardware {
					kind = "hardware"
				}
				fmt.Fprintf(out, "Encoder: %s (%s)\n", profile.Codec, kind)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&probeEncoder, "probe-encoder", false, "Run the hardware encoder capability probe")
	return cmd
}
