package cmd

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/signalnine/mcpbench/internal/aggregate"
	"github.com/signalnine/mcpbench/internal/config"
	"github.com/signalnine/mcpbench/internal/extract"
	"github.com/signalnine/mcpbench/internal/report"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/spf13/cobra"
)

var (
	flagBareDirs      []string
	flagContainerDirs []string
	flagRunDirs       []string
	flagOutDir        string
	flagQuiet         bool
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Aggregate repeated runs into summary tables with 95% confidence intervals",
		Long: "Read every run directory, summarize its dataset-eval files and extended_summary.json, " +
			"and write datasets_summary.csv, datasets_summary_wide.csv, extended_ops_summary.csv, " +
			"per_run_index.csv, extended_ops_stats.csv and per_load_summary.csv.",
		RunE: runCompare,
	}
	cmd.Flags().StringArrayVar(&flagBareDirs, "bare", nil, "bare-metal run directory (repeatable)")
	cmd.Flags().StringArrayVar(&flagContainerDirs, "ctn", nil, "container run directory (repeatable)")
	cmd.Flags().StringArrayVar(&flagRunDirs, "run", nil, "run directory for a configured environment, as LABEL=DIR (repeatable)")
	cmd.Flags().StringVar(&flagOutDir, "out", "", "output directory (default: <results.dir>/reports/<timestamp>)")
	cmd.Flags().BoolVar(&flagQuiet, "quiet", false, "do not print the summary table")
	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	groups, err := runGroups(cfg)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return fmt.Errorf("no run directories given (use --bare, --ctn or --run)")
	}

	var runs []extract.Run
	for _, g := range groups {
		runs = append(runs, extract.CollectRuns(g.dirs, g.env, cfg.Datasets)...)
	}

	outDir := flagOutDir
	if outDir == "" {
		outDir, err = result.CreateReportDir(cfg.Results.Dir)
		if err != nil {
			return err
		}
	}

	tables := report.Build(runs, aggregate.LabelsFromConfig(cfg))
	paths, err := report.WriteAll(outDir, tables)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range paths {
		fmt.Fprintf(out, "Wrote %s\n", p)
	}
	if flagQuiet {
		return nil
	}
	fmt.Fprintln(out)
	return report.Print(tables.Datasets, "table", out)
}

type runGroup struct {
	env  string
	dirs []string
}

// runGroups orders groups by the configured environment list so run
// numbering is stable regardless of flag order.
func runGroups(cfg *config.Config) ([]runGroup, error) {
	byEnv := map[string][]string{}
	byEnv[config.EnvBareMetal] = append(byEnv[config.EnvBareMetal], flagBareDirs...)
	byEnv[config.EnvContainer] = append(byEnv[config.EnvContainer], flagContainerDirs...)
	for _, spec := range flagRunDirs {
		env, dir, ok := strings.Cut(spec, "=")
		if !ok || env == "" || dir == "" {
			return nil, fmt.Errorf("invalid --run %q (want LABEL=DIR)", spec)
		}
		byEnv[env] = append(byEnv[env], dir)
	}

	var groups []runGroup
	for _, env := range cfg.Environments {
		if dirs := byEnv[env]; len(dirs) > 0 {
			groups = append(groups, runGroup{env: env, dirs: dirs})
		}
	}
	var extra []string
	for env, dirs := range byEnv {
		if len(dirs) > 0 && !slices.Contains(cfg.Environments, env) {
			extra = append(extra, env)
		}
	}
	slices.Sort(extra)
	for _, env := range extra {
		slog.Warn("environment not in config; its runs are indexed but not aggregated", "env", env, "runs", len(byEnv[env]))
		groups = append(groups, runGroup{env: env, dirs: byEnv[env]})
	}
	return groups, nil
}
