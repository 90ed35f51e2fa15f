// Package loadtest reads the per-load summary CSVs written by Locust.
package loadtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/signalnine/mcpbench/internal/result"
	"github.com/signalnine/mcpbench/internal/stats"
)

// StatsGlob matches Locust's --csv=metrics_<users> output.
const StatsGlob = "metrics_*_stats.csv"

var (
	ErrNoThroughputColumn = errors.New("no throughput column")
	ErrNoRows             = errors.New("no data rows")
)

var throughputHeader = regexp.MustCompile(`(?i)request.*/s`)

// Level is the Locust summary for one concurrency level.
type Level struct {
	Users int
	Stats result.LoadStats
}

// UsersFromFilename extracts the concurrency level from metrics_<users>_stats.csv.
func UsersFromFilename(path string) (int, error) {
	parts := strings.Split(filepath.Base(path), "_")
	if len(parts) < 3 {
		return 0, fmt.Errorf("unexpected stats file name %q", filepath.Base(path))
	}
	users, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("parsing users from %q: %w", filepath.Base(path), err)
	}
	return users, nil
}

// ParseStats reads the first data row of a Locust stats CSV.
func ParseStats(r io.Reader) (result.LoadStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return result.LoadStats{}, fmt.Errorf("reading header: %w", err)
	}
	row, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return result.LoadStats{}, ErrNoRows
	}
	if err != nil {
		return result.LoadStats{}, fmt.Errorf("reading row: %w", err)
	}

	cols := make(map[string]string, len(header))
	rpsCol := ""
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i < len(row) {
			cols[h] = strings.TrimSpace(row[i])
		}
		if rpsCol == "" && throughputHeader.MatchString(h) {
			rpsCol = h
		}
	}
	if rpsCol == "" {
		return result.LoadStats{}, ErrNoThroughputColumn
	}
	return result.LoadStats{
		P50MS:         percentile(cols, "50"),
		P95MS:         percentile(cols, "95"),
		P99MS:         percentile(cols, "99"),
		ThroughputRPS: number(cols[rpsCol]),
	}, nil
}

// percentile accepts both "95%" and "95" headers; "95%" wins when both
// carry a value.
func percentile(cols map[string]string, p string) stats.Value {
	if v := number(cols[p+"%"]); !v.IsNone() {
		return v
	}
	return number(cols[p])
}

func number(s string) stats.Value {
	if s == "" || strings.EqualFold(s, "N/A") {
		return stats.None
	}
	v, err := stats.ParseValue(s)
	if err != nil {
		return stats.None
	}
	return v
}

// ReadDir parses every stats CSV in logDir, sorted by users. Files that
// cannot be parsed are logged and skipped.
func ReadDir(logDir string) ([]Level, error) {
	paths, err := filepath.Glob(filepath.Join(logDir, StatsGlob))
	if err != nil {
		return nil, fmt.Errorf("globbing stats files: %w", err)
	}
	var levels []Level
	for _, p := range paths {
		users, err := UsersFromFilename(p)
		if err != nil {
			slog.Warn("skipping locust stats file", "path", p, "err", err)
			continue
		}
		st, err := parseFile(p)
		if err != nil {
			slog.Warn("skipping locust stats file", "path", p, "err", err)
			continue
		}
		levels = append(levels, Level{Users: users, Stats: st})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Users < levels[j].Users })
	return levels, nil
}

func parseFile(path string) (result.LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return result.LoadStats{}, err
	}
	defer f.Close()
	return ParseStats(f)
}
