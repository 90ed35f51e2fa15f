// Package monitor normalizes raw resource-monitor logs into CPU/RSS samples.
//
// Two monitor backends are supported: `docker stats --format '{{json .}}'`
// style output (one JSON object per line) and pidstat's periodic text rows.
// Both collapse into the same Sample type; nothing downstream cares which
// backend produced it.
package monitor

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/signalnine/mcpbench/internal/stats"
)

const (
	DockerStatsFile = "docker_stats_raw.json"
	PidstatFile     = "pidstat_raw.txt"
)

// Pidstat column positions in `pidstat -u -r` data rows.
const (
	pidstatCPUColumn = 6
	pidstatRSSColumn = 9
)

// EmptyChannelValue is what Summarize reports for a channel with no samples.
// Older reports printed 0 rather than a missing marker and downstream
// tables depend on that, so it stays 0 here and nowhere else.
const EmptyChannelValue = 0.0

var ErrNoResourceLog = errors.New("no resource log")

// Variant identifies which monitor backend produced a log.
type Variant int

const (
	VariantNone Variant = iota
	VariantDockerStats
	VariantPidstat
)

func (v Variant) String() string {
	switch v {
	case VariantDockerStats:
		return "docker-stats"
	case VariantPidstat:
		return "pidstat"
	default:
		return "none"
	}
}

// Sample is one monitor reading. Either channel may be None when the row
// only carried the other one.
type Sample struct {
	CPUPercent   stats.Value
	RSSMegabytes stats.Value
}

// Usage is the aggregate written into extended_summary.json.
type Usage struct {
	MeanCPUPct float64
	PeakCPUPct float64
	MeanRSSMB  float64
	PeakRSSMB  float64
	CPUSamples int
	RSSSamples int
}

// Detect picks the log variant by file presence. The docker stats log wins
// when both are present.
func Detect(logDir string) (Variant, string) {
	if p := filepath.Join(logDir, DockerStatsFile); isFile(p) {
		return VariantDockerStats, p
	}
	if p := filepath.Join(logDir, PidstatFile); isFile(p) {
		return VariantPidstat, p
	}
	return VariantNone, ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Parse dispatches to the parser for v.
func Parse(v Variant, r io.Reader) ([]Sample, error) {
	switch v {
	case VariantDockerStats:
		return ParseDockerStats(r)
	case VariantPidstat:
		return ParsePidstat(r)
	}
	return nil, fmt.Errorf("parsing resource log: %w", ErrNoResourceLog)
}

// Read detects, parses and summarizes the resource log in logDir.
func Read(logDir string) (Usage, Variant, error) {
	v, path := Detect(logDir)
	if v == VariantNone {
		return Summarize(nil), v, fmt.Errorf("%s: %w", logDir, ErrNoResourceLog)
	}
	f, err := os.Open(path)
	if err != nil {
		return Summarize(nil), v, fmt.Errorf("opening resource log: %w", err)
	}
	defer f.Close()
	samples, err := Parse(v, f)
	if err != nil {
		if len(samples) == 0 {
			return Summarize(nil), v, err
		}
		// A truncated log still summarizes what was read before the bad line.
		slog.Warn("resource log read partially", "path", path, "samples", len(samples), "err", err)
	}
	return Summarize(samples), v, nil
}

type dockerStatsLine struct {
	CPU *string `json:"cpu"`
	Mem *string `json:"mem"`
}

var memPattern = regexp.MustCompile(`(?i)^([\d.]+)\s*([KMG]i?B)`)

// Decimal and binary spellings share a factor on purpose; docker stats
// mixes them and the reports were always produced this way.
var memUnitMB = map[string]float64{
	"KB": 1.0 / 1024, "KIB": 1.0 / 1024,
	"MB": 1, "MIB": 1,
	"GB": 1024, "GIB": 1024,
}

// ParseDockerStats reads one JSON object per line, e.g.
// {"cpu":"12.5%","mem":"256MiB / 512MiB"}. Banner and blank lines are skipped.
func ParseDockerStats(r io.Reader) ([]Sample, error) {
	var samples []Sample
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var rec dockerStatsLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		var s Sample
		if rec.CPU != nil {
			s.CPUPercent = parseCPU(*rec.CPU)
		}
		if rec.Mem != nil {
			s.RSSMegabytes = parseMem(*rec.Mem)
		}
		if s.CPUPercent.IsNone() && s.RSSMegabytes.IsNone() {
			continue
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return samples, fmt.Errorf("scanning docker stats log: %w", err)
	}
	return samples, nil
}

func parseCPU(s string) stats.Value {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return stats.None
	}
	return stats.Some(f)
}

func parseMem(s string) stats.Value {
	used, _, _ := strings.Cut(s, "/")
	m := memPattern.FindStringSubmatch(strings.TrimSpace(used))
	if m == nil {
		return stats.None
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return stats.None
	}
	return stats.Some(val * memUnitMB[strings.ToUpper(m[2])])
}

// ParsePidstat reads pidstat text. Only rows starting with a digit (the
// timestamp) are data; headers, "Average:" rows and short or non-numeric
// rows are skipped.
func ParsePidstat(r io.Reader) ([]Sample, error) {
	var samples []Sample
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] < '0' || line[0] > '9' || strings.Contains(line, "%CPU") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) <= pidstatRSSColumn {
			continue
		}
		cpu, err := strconv.ParseFloat(parts[pidstatCPUColumn], 64)
		if err != nil {
			continue
		}
		rssKB, err := strconv.ParseFloat(parts[pidstatRSSColumn], 64)
		if err != nil {
			continue
		}
		samples = append(samples, Sample{
			CPUPercent:   stats.Some(cpu),
			RSSMegabytes: stats.Some(rssKB / 1024),
		})
	}
	if err := sc.Err(); err != nil {
		return samples, fmt.Errorf("scanning pidstat log: %w", err)
	}
	return samples, nil
}

// Summarize reduces samples to mean/peak per channel: CPU rounded to two
// decimals, RSS to one.
func Summarize(samples []Sample) Usage {
	var cpu, rss []stats.Value
	for _, s := range samples {
		cpu = append(cpu, s.CPUPercent)
		rss = append(rss, s.RSSMegabytes)
	}
	cpuVals, rssVals := stats.Present(cpu), stats.Present(rss)
	u := Usage{
		MeanCPUPct: EmptyChannelValue,
		PeakCPUPct: EmptyChannelValue,
		MeanRSSMB:  EmptyChannelValue,
		PeakRSSMB:  EmptyChannelValue,
		CPUSamples: len(cpuVals),
		RSSSamples: len(rssVals),
	}
	if len(cpuVals) > 0 {
		u.MeanCPUPct = round(stats.Mean(cpu).Or(0), 2)
		u.PeakCPUPct = round(floats.Max(cpuVals), 2)
	}
	if len(rssVals) > 0 {
		u.MeanRSSMB = round(stats.Mean(rss).Or(0), 1)
		u.PeakRSSMB = round(floats.Max(rssVals), 1)
	}
	return u
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}
