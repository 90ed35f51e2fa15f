package cmd

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/signalnine/mcpbench/internal/runner"
	"github.com/spf13/cobra"
)

var (
	flagMode      string
	flagDeployS   float64
	flagColdMS    float64
	flagImageSize int64
	flagImage     string
)

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <log-dir>",
		Short: "Fold one run's Locust, monitor and perf logs into extended_summary.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := runner.SummarizeRun(cmd.Context(), &runner.SummarizeOpts{
				LogDir:      args[0],
				Mode:        flagMode,
				DeployTimeS: flagDeployS,
				ColdStartMS: flagColdMS,
				ImageSize:   flagImageSize,
				Image:       flagImage,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s/%s\n", args[0], result.ExtendedSummaryFile)
			fmt.Fprintf(out, "  load levels: %d\n", len(s.PerLoad))
			fmt.Fprintf(out, "  cpu: mean %s%% peak %s%%\n", s.MeanCPUPct, s.PeakCPUPct)
			fmt.Fprintf(out, "  rss: mean %s MB peak %s MB\n", s.MeanRSSMB, s.PeakRSSMB)
			if size, ok := s.ImageSizeBytes.Get(); ok {
				fmt.Fprintf(out, "  image: %s\n", units.HumanSize(size))
			}
			if c, ok := s.CyclesPerReq.Get(); ok {
				fmt.Fprintf(out, "  cycles/request: %.0f\n", c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagMode, "mode", runner.ModeBare, "deployment mode (bare, container)")
	cmd.Flags().Float64Var(&flagDeployS, "deploy-s", 0, "deployment time in seconds")
	cmd.Flags().Float64Var(&flagColdMS, "cold-ms", 0, "cold start in milliseconds")
	cmd.Flags().Int64Var(&flagImageSize, "image-size", 0, "container image size in bytes")
	cmd.Flags().StringVar(&flagImage, "image", "", "container image to inspect for its size when --image-size is not given")
	return cmd
}
