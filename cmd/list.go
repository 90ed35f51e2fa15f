package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured datasets, environments and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Datasets:")
			for _, d := range cfg.Datasets {
				fmt.Fprintf(out, "  - %s (file: %s, mode: %s)\n", d.Name, d.File, d.Mode)
			}
			fmt.Fprintln(out, "\nEnvironments:")
			for _, e := range cfg.Environments {
				fmt.Fprintf(out, "  - %s\n", e)
			}
			fmt.Fprintln(out, "\nMetrics:")
			for _, m := range cfg.Metrics {
				fmt.Fprintf(out, "  - %s\n", m)
			}
			fmt.Fprintln(out, "\nOps metrics:")
			for _, m := range cfg.OpsMetrics {
				fmt.Fprintf(out, "  - %s\n", m)
			}
			return nil
		},
	}
}
