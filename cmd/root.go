package cmd

import (
	"fmt"
	"log/slog"

	"github.com/signalnine/mcpbench/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	flagLogLevel string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mcpbench",
		Short:         "Compare MCP inference deployments across repeated benchmark runs",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(flagLogLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", flagLogLevel, err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "mcpbench.yaml", "config file path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(newCompareCmd())
	root.AddCommand(newSummarizeCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	return root
}

// loadConfig falls back to the built-in layout when the default config
// file is absent. An explicit --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.LoadOrDefault(cfgFile, cmd.Flags().Changed("config"))
}
