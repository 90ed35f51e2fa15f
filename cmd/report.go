package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/signalnine/mcpbench/internal/report"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/spf13/cobra"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [out-dir]",
		Short: "Print a stored datasets summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			outDir := filepath.Join(cfg.Results.Dir, result.LatestLink)
			if len(args) > 0 {
				outDir = args[0]
			}
			resolved, err := filepath.EvalSymlinks(outDir)
			if err != nil {
				return fmt.Errorf("resolving report dir: %w", err)
			}
			return report.Generate(resolved, flagFormat, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
