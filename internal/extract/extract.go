// Package extract turns one run directory into per-run records.
//
// Nothing here returns an error for missing or broken artifacts: a run that
// lacks a file simply contributes no data, and sibling runs are unaffected.
package extract

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/signalnine/mcpbench/internal/config"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/signalnine/mcpbench/internal/stats"
)

// Run is everything extracted from one run directory.
type Run struct {
	Env      string
	Index    int
	Dir      string
	Datasets []result.DatasetSummary
	// Ops is nil when the run has no usable extended summary.
	Ops   *result.OpsSummary
	Loads []result.LoadSample
}

// Dataset returns the summary for name, or an empty one.
func (r *Run) Dataset(name string) result.DatasetSummary {
	for _, d := range r.Datasets {
		if d.Dataset == name {
			return d
		}
	}
	return result.DatasetSummary{Dataset: name}
}

// SummarizeEvalFile averages each metric over the records that carry it.
// An absent, unparseable or empty file yields Count == 0 with every metric
// None.
func SummarizeEvalFile(path string) result.DatasetSummary {
	var s result.DatasetSummary
	records, err := result.ReadEvalFile(path)
	if err != nil {
		logArtifact("eval file unusable", path, err)
		return s
	}
	if len(records) == 0 {
		slog.Debug("eval file is empty", "path", path)
		return s
	}
	var bleu, rouge, pass1, latency []stats.Value
	for _, rec := range records {
		bleu = append(bleu, rec.BLEU)
		rouge = append(rouge, rec.Rouge)
		pass1 = append(pass1, rec.Pass1)
		latency = append(latency, rec.LatencyMS)
	}
	s.BLEU = stats.Mean(bleu)
	s.Rouge = stats.Mean(rouge)
	s.Pass1 = stats.Mean(pass1)
	s.LatencyMS = stats.Mean(latency)
	s.Count = len(records)
	return s
}

// LoadRun reads dir. One DatasetSummary is produced per configured dataset,
// in configuration order, whether or not its file exists.
func LoadRun(dir, env string, index int, datasets []config.Dataset) Run {
	run := Run{Env: env, Index: index, Dir: dir}
	for _, d := range datasets {
		s := SummarizeEvalFile(filepath.Join(dir, d.File))
		s.Dataset = d.Name
		run.Datasets = append(run.Datasets, s)
	}

	path := filepath.Join(dir, result.ExtendedSummaryFile)
	ext, err := result.ReadExtendedSummary(path)
	if err != nil {
		logArtifact("extended summary unusable", path, err)
		return run
	}
	ops := ext.Ops()
	run.Ops = &ops
	run.Loads = LoadSamples(ext.PerLoad)
	return run
}

// LoadSamples converts the per_load map into samples sorted by users.
// Keys that are not positive decimal integers are skipped.
func LoadSamples(perLoad map[string]result.LoadStats) []result.LoadSample {
	var out []result.LoadSample
	for key, st := range perLoad {
		users, err := strconv.Atoi(key)
		if err != nil || users <= 0 {
			slog.Debug("skipping per_load entry", "key", key)
			continue
		}
		out = append(out, result.LoadSample{
			Users:         users,
			P95MS:         st.P95MS,
			ThroughputRPS: st.ThroughputRPS,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Users < out[j].Users })
	return out
}

// CollectRuns loads every dir for one environment. Runs are numbered from 1
// in argument order.
func CollectRuns(dirs []string, env string, datasets []config.Dataset) []Run {
	runs := make([]Run, 0, len(dirs))
	for i, dir := range dirs {
		runs = append(runs, LoadRun(dir, env, i+1, datasets))
	}
	return runs
}

// OpsRuns returns the runs that carry an ops summary.
func OpsRuns(runs []Run) []Run {
	var out []Run
	for _, r := range runs {
		if r.Ops != nil {
			out = append(out, r)
		}
	}
	return out
}

func logArtifact(msg, path string, err error) {
	if errors.Is(err, result.ErrMissingArtifact) {
		slog.Info(msg, "path", path, "reason", "missing")
		return
	}
	slog.Warn(msg, "path", path, "err", err)
}
