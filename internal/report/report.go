package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/mcpbench/internal/aggregate"
	"github.com/signalnine/mcpbench/internal/extract"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/signalnine/mcpbench/internal/stats"
)

const (
	DatasetsSummaryFile = "datasets_summary.csv"
	DatasetsWideFile    = "datasets_summary_wide.csv"
	OpsSummaryFile      = "extended_ops_summary.csv"
	RunIndexFile        = "per_run_index.csv"
	OpsStatsFile        = "extended_ops_stats.csv"
	PerLoadFile         = "per_load_summary.csv"
)

var (
	datasetsHeader = []string{"dataset", "env", "metric", "mean", "ci_low", "ci_high", "n"}
	opsStatsHeader = []string{"env", "metric", "mean", "ci_low", "ci_high", "n"}
	perLoadHeader  = []string{"env", "users", "metric", "mean", "ci_low", "ci_high", "n"}
	runIndexHeader = []string{"env", "run", "run_dir"}
)

// Per-load metric names in per_load_summary.csv.
const (
	LoadMetricP95        = "p95_ms"
	LoadMetricThroughput = "throughput_rps"
)

var ErrBadHeader = errors.New("unexpected header")

// Tables is everything a compare invocation writes.
type Tables struct {
	Labels   aggregate.Labels
	Runs     []extract.Run
	Datasets []aggregate.DatasetRow
	Ops      []aggregate.OpsRow
	Curves   []aggregate.EnvCurve
}

// Build aggregates runs into every table.
func Build(runs []extract.Run, labels aggregate.Labels) *Tables {
	return &Tables{
		Labels:   labels,
		Runs:     runs,
		Datasets: aggregate.Datasets(runs, labels),
		Ops:      aggregate.Ops(runs, labels),
		Curves:   aggregate.Curves(runs, labels),
	}
}

// WriteAll writes every CSV into outDir and returns the paths written.
func WriteAll(outDir string, t *Tables) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{DatasetsSummaryFile, func(w io.Writer) error { return WriteDatasetsSummary(w, t.Datasets) }},
		{DatasetsWideFile, func(w io.Writer) error { return WriteDatasetsWide(w, t.Datasets, t.Labels) }},
		{OpsSummaryFile, func(w io.Writer) error { return WriteOpsSummary(w, t.Runs) }},
		{RunIndexFile, func(w io.Writer) error { return WriteRunIndex(w, t.Runs) }},
		{OpsStatsFile, func(w io.Writer) error { return WriteOpsStats(w, t.Ops) }},
		{PerLoadFile, func(w io.Writer) error { return WritePerLoad(w, t.Curves) }},
	}
	var paths []string
	for _, wr := range writers {
		path := filepath.Join(outDir, wr.name)
		if err := writeFile(path, wr.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// aggregateCells renders mean, ci_low, ci_high, n. An empty aggregate is
// four empty cells.
func aggregateCells(a stats.Aggregate) []string {
	if a.Empty() {
		return []string{"", "", "", ""}
	}
	return []string{a.Mean.String(), a.CILow.String(), a.CIHigh.String(), strconv.Itoa(a.N)}
}

// WriteDatasetsSummary writes the long form: one row per dataset × env × metric.
func WriteDatasetsSummary(w io.Writer, rows []aggregate.DatasetRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, append([]string{r.Dataset, r.Env, r.Metric}, aggregateCells(r.Aggregate)...))
	}
	return writeCSV(w, datasetsHeader, out)
}

// WriteDatasetsWide writes one row per dataset with an {env}_{metric} mean
// column for every environment and metric in label order.
func WriteDatasetsWide(w io.Writer, rows []aggregate.DatasetRow, labels aggregate.Labels) error {
	type key struct{ dataset, env, metric string }
	means := make(map[key]stats.Value, len(rows))
	for _, r := range rows {
		means[key{r.Dataset, r.Env, r.Metric}] = r.Mean
	}
	header := []string{"Dataset"}
	for _, env := range labels.Environments {
		for _, m := range labels.Metrics {
			header = append(header, env+"_"+m)
		}
	}
	out := make([][]string, 0, len(labels.Datasets))
	for _, ds := range labels.Datasets {
		row := []string{ds}
		for _, env := range labels.Environments {
			for _, m := range labels.Metrics {
				row = append(row, means[key{ds, env, m}].String())
			}
		}
		out = append(out, row)
	}
	return writeCSV(w, header, out)
}

// WriteOpsSummary writes one row per run that has an extended summary.
func WriteOpsSummary(w io.Writer, runs []extract.Run) error {
	header := append([]string{"env", "run", "run_dir"}, result.OpsMetrics...)
	var out [][]string
	for _, r := range extract.OpsRuns(runs) {
		row := []string{r.Env, strconv.Itoa(r.Index), r.Dir}
		for _, m := range result.OpsMetrics {
			row = append(row, r.Ops.Metric(m).String())
		}
		out = append(out, row)
	}
	return writeCSV(w, header, out)
}

func WriteRunIndex(w io.Writer, runs []extract.Run) error {
	out := make([][]string, 0, len(runs))
	for _, r := range runs {
		out = append(out, []string{r.Env, strconv.Itoa(r.Index), r.Dir})
	}
	return writeCSV(w, runIndexHeader, out)
}

func WriteOpsStats(w io.Writer, rows []aggregate.OpsRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, append([]string{r.Env, r.Metric}, aggregateCells(r.Aggregate)...))
	}
	return writeCSV(w, opsStatsHeader, out)
}

// WritePerLoad writes two rows per level, p95 then throughput.
func WritePerLoad(w io.Writer, curves []aggregate.EnvCurve) error {
	var out [][]string
	for _, c := range curves {
		for _, p := range c.Points {
			users := strconv.Itoa(p.Users)
			out = append(out,
				append([]string{c.Env, users, LoadMetricP95}, aggregateCells(p.P95MS)...),
				append([]string{c.Env, users, LoadMetricThroughput}, aggregateCells(p.Throughput)...),
			)
		}
	}
	return writeCSV(w, perLoadHeader, out)
}

// ReadDatasetsSummary parses a long-form datasets_summary.csv.
func ReadDatasetsSummary(path string) ([]aggregate.DatasetRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ParseDatasetsSummary(f)
}

func ParseDatasetsSummary(r io.Reader) ([]aggregate.DatasetRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(datasetsHeader)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(datasetsHeader, ",") {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, header)
	}
	var rows []aggregate.DatasetRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		agg, err := parseAggregate(rec[3:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, aggregate.DatasetRow{Dataset: rec[0], Env: rec[1], Metric: rec[2], Aggregate: agg})
	}
	return rows, nil
}

func parseAggregate(cells []string) (stats.Aggregate, error) {
	var a stats.Aggregate
	var err error
	if a.Mean, err = stats.ParseValue(cells[0]); err != nil {
		return a, fmt.Errorf("mean: %w", err)
	}
	if a.CILow, err = stats.ParseValue(cells[1]); err != nil {
		return a, fmt.Errorf("ci_low: %w", err)
	}
	if a.CIHigh, err = stats.ParseValue(cells[2]); err != nil {
		return a, fmt.Errorf("ci_high: %w", err)
	}
	if cells[3] != "" {
		if a.N, err = strconv.Atoi(cells[3]); err != nil {
			return a, fmt.Errorf("n: %w", err)
		}
	}
	return a, nil
}

// Generate prints the datasets summary found in outDir.
func Generate(outDir, format string, w io.Writer) error {
	rows, err := ReadDatasetsSummary(filepath.Join(outDir, DatasetsSummaryFile))
	if err != nil {
		return err
	}
	return Print(rows, format, w)
}

func Print(rows []aggregate.DatasetRow, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(rows, w)
	case "json":
		return writeJSON(rows, w)
	default:
		return writeTable(rows, w)
	}
}

func cell(v stats.Value) string {
	f, ok := v.Get()
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func interval(a stats.Aggregate) string {
	if a.Empty() {
		return "-"
	}
	return fmt.Sprintf("[%s, %s]", cell(a.CILow), cell(a.CIHigh))
}

func writeTable(rows []aggregate.DatasetRow, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tENV\tMETRIC\tMEAN\t95% CI\tN")
	fmt.Fprintln(tw, strings.Repeat("-", 72))
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.Dataset, r.Env, r.Metric, cell(r.Mean), interval(r.Aggregate), r.N)
	}
	return tw.Flush()
}

func writeMarkdown(rows []aggregate.DatasetRow, w io.Writer) error {
	fmt.Fprintln(w, "| Dataset | Env | Metric | Mean | 95% CI | N |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|")
	for _, r := range rows {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %d |\n",
			r.Dataset, r.Env, r.Metric, cell(r.Mean), interval(r.Aggregate), r.N)
	}
	return nil
}

func writeJSON(rows []aggregate.DatasetRow, w io.Writer) error {
	if rows == nil {
		rows = []aggregate.DatasetRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
