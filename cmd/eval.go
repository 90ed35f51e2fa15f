package cmd

import (
	"fmt"
	"log/slog"

	"github.com/signalnine/mcpbench/internal/evaluate"
	"github.com/signalnine/mcpbench/internal/mcp"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/spf13/cobra"
)

var (
	flagDataset  string
	flagExamples string
	flagEvalOut  string
	flagURL      string
	flagWorkers  int
	flagLimit    int
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score the MCP endpoint on a dataset and write its eval file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ds, ok := cfg.Dataset(flagDataset)
			if !ok {
				return fmt.Errorf("unknown dataset %q (configured: %v)", flagDataset, cfg.DatasetNames())
			}
			if flagURL != "" {
				cfg.MCP.URL = flagURL
			}
			outPath := flagEvalOut
			if outPath == "" {
				outPath = ds.File
			}

			examples, err := evaluate.ReadExamples(flagExamples)
			if err != nil {
				return err
			}
			slog.Info("evaluating", "dataset", ds.Name, "examples", len(examples), "url", cfg.MCP.URL)

			records, err := evaluate.Run(cmd.Context(), examples, evaluate.Options{
				Dataset:  *ds,
				MCP:      cfg.MCP,
				Client:   mcp.NewClient(cfg.MCP),
				Workers:  flagWorkers,
				Limit:    flagLimit,
				Progress: func(done, total int) {
					if done%50 == 0 || done == total {
						slog.Info("progress", "dataset", ds.Name, "done", done, "total", total)
					}
				},
			})
			if err != nil {
				return err
			}
			if err := result.WriteEvalFile(outPath, records); err != nil {
				return err
			}
			failed := 0
			for _, r := range records {
				if r.Error != "" {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s eval to %s (n=%d, errors=%d)\n", ds.Name, outPath, len(records), failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDataset, "dataset", "", "dataset name from config")
	cmd.Flags().StringVar(&flagExamples, "examples", "", "JSON-lines examples file")
	cmd.Flags().StringVar(&flagEvalOut, "out", "", "output eval file (default: the dataset's configured file name)")
	cmd.Flags().StringVar(&flagURL, "url", "", "MCP endpoint URL (overrides config)")
	cmd.Flags().IntVar(&flagWorkers, "workers", 1, "concurrent requests")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "evaluate at most this many examples (0 = all)")
	cmd.MarkFlagRequired("dataset")
	cmd.MarkFlagRequired("examples")
	return cmd
}
