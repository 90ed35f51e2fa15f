package report_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/mcpbench/internal/aggregate"
	"github.com/signalnine/mcpbench/internal/extract"
	"github.com/signalnine/mcpbench/internal/report"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/signalnine/mcpbench/internal/stats"
)

var labels = aggregate.Labels{
	Datasets:     []string{"Alpaca", "SQuADv2"},
	Environments: []string{"Bare-Metal", "Container"},
	Metrics:      []string{result.MetricBLEU, result.MetricRouge},
	OpsMetrics:   result.OpsMetrics,
}

func sampleRuns() []extract.Run {
	summary := func(bleu, rouge float64) []result.DatasetSummary {
		return []result.DatasetSummary{
			{Dataset: "Alpaca", BLEU: stats.Some(bleu), Rouge: stats.Some(rouge), Count: 3},
			{Dataset: "SQuADv2"},
		}
	}
	return []extract.Run{
		{Env: "Bare-Metal", Index: 1, Dir: "/runs/bm1", Datasets: summary(0.1, 0.3),
			Ops:   &result.OpsSummary{DeployTimeS: stats.Some(1.5), ImageSizeBytes: stats.None},
			Loads: []result.LoadSample{{Users: 10, P95MS: stats.Some(120), ThroughputRPS: stats.Some(7)}}},
		{Env: "Bare-Metal", Index: 2, Dir: "/runs/bm2", Datasets: summary(0.2, 1.0/3)},
		{Env: "Container", Index: 1, Dir: "/runs/ct1", Datasets: summary(0.15, 0.25),
			Ops: &result.OpsSummary{DeployTimeS: stats.Some(4), ImageSizeBytes: stats.Some(1_234_567_890)}},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestWriteAll(t *testing.T) {
	out := t.TempDir()
	paths, err := report.WriteAll(out, report.Build(sampleRuns(), labels))
	require.NoError(t, err)
	assert.Len(t, paths, 6)

	long := readCSV(t, filepath.Join(out, report.DatasetsSummaryFile))
	assert.Equal(t, []string{"dataset", "env", "metric", "mean", "ci_low", "ci_high", "n"}, long[0])
	assert.Len(t, long, 1+2*2*2)
	assert.Equal(t, []string{"Alpaca", "Bare-Metal", "bleu"}, long[1][:3])
	assert.Equal(t, "2", long[1][6])
	// SQuADv2 has no data: the four stat cells are empty
	assert.Equal(t, []string{"SQuADv2", "Bare-Metal", "bleu", "", "", "", ""}, long[5])

	wide := readCSV(t, filepath.Join(out, report.DatasetsWideFile))
	assert.Equal(t, []string{"Dataset", "Bare-Metal_bleu", "Bare-Metal_rouge", "Container_bleu", "Container_rouge"}, wide[0])
	assert.Equal(t, "Alpaca", wide[1][0])
	assert.Equal(t, "0.15", wide[1][3])
	assert.Equal(t, []string{"SQuADv2", "", "", "", ""}, wide[2])

	ops := readCSV(t, filepath.Join(out, report.OpsSummaryFile))
	assert.Equal(t, append([]string{"env", "run", "run_dir"}, result.OpsMetrics...), ops[0])
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"Bare-Metal", "1", "/runs/bm1", "1.5"}, ops[1][:4])
	assert.Equal(t, "", ops[1][9])
	assert.Equal(t, "1234567890", ops[2][9])

	index := readCSV(t, filepath.Join(out, report.RunIndexFile))
	assert.Equal(t, [][]string{
		{"env", "run", "run_dir"},
		{"Bare-Metal", "1", "/runs/bm1"},
		{"Bare-Metal", "2", "/runs/bm2"},
		{"Container", "1", "/runs/ct1"},
	}, index)

	perLoad := readCSV(t, filepath.Join(out, report.PerLoadFile))
	require.Len(t, perLoad, 3)
	assert.Equal(t, []string{"Bare-Metal", "10", "p95_ms", "120", "120", "120", "1"}, perLoad[1])
	assert.Equal(t, []string{"Bare-Metal", "10", "throughput_rps", "7", "7", "7", "1"}, perLoad[2])

	opsStats := readCSV(t, filepath.Join(out, report.OpsStatsFile))
	assert.Len(t, opsStats, 1+2*len(result.OpsMetrics))
}

func TestWriteDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	tables := report.Build(sampleRuns(), labels)
	require.NoError(t, report.WriteDatasetsSummary(&a, tables.Datasets))
	require.NoError(t, report.WriteDatasetsSummary(&b, report.Build(sampleRuns(), labels).Datasets))
	assert.Equal(t, a.String(), b.String())
}

func TestDatasetsSummaryRoundTrip(t *testing.T) {
	out := t.TempDir()
	tables := report.Build(sampleRuns(), labels)
	_, err := report.WriteAll(out, tables)
	require.NoError(t, err)

	got, err := report.ReadDatasetsSummary(filepath.Join(out, report.DatasetsSummaryFile))
	require.NoError(t, err)
	require.Len(t, got, len(tables.Datasets))
	for i, want := range tables.Datasets {
		assert.Equal(t, want.Dataset, got[i].Dataset)
		assert.Equal(t, want.Env, got[i].Env)
		assert.Equal(t, want.Metric, got[i].Metric)
		// exact equality: the CSV text must parse back to identical floats
		assert.Equal(t, want.Aggregate, got[i].Aggregate, "row %d", i)
	}
}

func TestParseDatasetsSummaryBadHeader(t *testing.T) {
	_, err := report.ParseDatasetsSummary(strings.NewReader("a,b,c,d,e,f,g\n"))
	assert.ErrorIs(t, err, report.ErrBadHeader)
}

func TestGenerateFormats(t *testing.T) {
	out := t.TempDir()
	_, err := report.WriteAll(out, report.Build(sampleRuns(), labels))
	require.NoError(t, err)

	for _, format := range []string{"table", "markdown", "json"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, report.Generate(out, format, &buf))
			s := buf.String()
			assert.Contains(t, s, "Alpaca")
			assert.Contains(t, s, "Container")
		})
	}

	var buf bytes.Buffer
	require.NoError(t, report.Generate(out, "json", &buf))
	assert.Contains(t, buf.String(), `"mean": null`)
}

func TestGenerateMissing(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, report.Generate(t.TempDir(), "table", &buf))
}
