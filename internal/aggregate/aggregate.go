// Package aggregate groups per-run records and computes cross-run statistics.
package aggregate

import (
	"sort"

	"github.com/signalnine/mcpbench/internal/config"
	"github.com/signalnine/mcpbench/internal/extract"
	"github.com/signalnine/mcpbench/internal/stats"
)

// Labels fixes the row order of every table. Groups are emitted in this
// order whether or not any run contributes to them.
type Labels struct {
	Datasets     []string
	Environments []string
	Metrics      []string
	OpsMetrics   []string
}

func LabelsFromConfig(cfg *config.Config) Labels {
	return Labels{
		Datasets:     cfg.DatasetNames(),
		Environments: cfg.Environments,
		Metrics:      cfg.Metrics,
		OpsMetrics:   cfg.OpsMetrics,
	}
}

type DatasetRow struct {
	Dataset string `json:"dataset"`
	Env     string `json:"env"`
	Metric  string `json:"metric"`
	stats.Aggregate
}

type OpsRow struct {
	Env    string `json:"env"`
	Metric string `json:"metric"`
	stats.Aggregate
}

// LoadPoint is the cross-run statistic at one concurrency level.
type LoadPoint struct {
	Users      int
	P95MS      stats.Aggregate
	Throughput stats.Aggregate
}

type EnvCurve struct {
	Env    string
	Points []LoadPoint
}

func byEnv(runs []extract.Run) map[string][]extract.Run {
	m := map[string][]extract.Run{}
	for _, r := range runs {
		m[r.Env] = append(m[r.Env], r)
	}
	return m
}

// Datasets emits one row per dataset × environment × metric. A run's
// dataset summary with no data contributes nothing to the group.
func Datasets(runs []extract.Run, labels Labels) []DatasetRow {
	envRuns := byEnv(runs)
	rows := make([]DatasetRow, 0, len(labels.Datasets)*len(labels.Environments)*len(labels.Metrics))
	for _, ds := range labels.Datasets {
		for _, env := range labels.Environments {
			for _, metric := range labels.Metrics {
				var samples []stats.Value
				for _, r := range envRuns[env] {
					s := r.Dataset(ds)
					if s.Count == 0 {
						continue
					}
					samples = append(samples, s.Metric(metric))
				}
				rows = append(rows, DatasetRow{
					Dataset:   ds,
					Env:       env,
					Metric:    metric,
					Aggregate: stats.CI95(samples),
				})
			}
		}
	}
	return rows
}

// Ops emits one row per environment × operational metric.
func Ops(runs []extract.Run, labels Labels) []OpsRow {
	envRuns := byEnv(runs)
	rows := make([]OpsRow, 0, len(labels.Environments)*len(labels.OpsMetrics))
	for _, env := range labels.Environments {
		for _, metric := range labels.OpsMetrics {
			var samples []stats.Value
			for _, r := range envRuns[env] {
				if r.Ops == nil {
					continue
				}
				samples = append(samples, r.Ops.Metric(metric))
			}
			rows = append(rows, OpsRow{Env: env, Metric: metric, Aggregate: stats.CI95(samples)})
		}
	}
	return rows
}

// Curve groups load samples by exact user count across runs. Every level
// seen in any run is emitted, ascending; N can differ between levels.
func Curve(runs []extract.Run) []LoadPoint {
	p95 := map[int][]stats.Value{}
	rps := map[int][]stats.Value{}
	for _, r := range runs {
		for _, s := range r.Loads {
			p95[s.Users] = append(p95[s.Users], s.P95MS)
			rps[s.Users] = append(rps[s.Users], s.ThroughputRPS)
		}
	}
	levels := make([]int, 0, len(p95))
	for u := range p95 {
		levels = append(levels, u)
	}
	sort.Ints(levels)

	points := make([]LoadPoint, 0, len(levels))
	for _, u := range levels {
		points = append(points, LoadPoint{
			Users:      u,
			P95MS:      stats.CI95(p95[u]),
			Throughput: stats.CI95(rps[u]),
		})
	}
	return points
}

// Curves computes one Curve per environment in label order.
func Curves(runs []extract.Run, labels Labels) []EnvCurve {
	envRuns := byEnv(runs)
	out := make([]EnvCurve, 0, len(labels.Environments))
	for _, env := range labels.Environments {
		out = append(out, EnvCurve{Env: env, Points: Curve(envRuns[env])})
	}
	return out
}
