// Package cost derives per-request CPU cost from `perf stat` output.
package cost

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/signalnine/mcpbench/internal/stats"
)

const PerfCyclesFile = "perf_cycles.txt"

// ParsePerfCycles returns the counter from the first line mentioning
// " cycles", e.g. "  12,345,678,901      cycles". ok is false when no such
// line carries an integer.
func ParsePerfCycles(r io.Reader) (total int64, ok bool, err error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, " cycles") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return 0, false, nil
		}
		n, err := strconv.ParseInt(strings.ReplaceAll(fields[0], ",", ""), 10, 64)
		if err != nil {
			return 0, false, nil
		}
		return n, true, nil
	}
	if err := sc.Err(); err != nil {
		return 0, false, fmt.Errorf("scanning perf output: %w", err)
	}
	return 0, false, nil
}

func ReadPerfCycles(path string) (int64, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()
	return ParsePerfCycles(f)
}

// CyclesPerRequest spreads total cycles over peakRPS * int(deployS + 1)
// requests. The +1 second has always been part of the reported figure and
// is kept so numbers stay comparable across reports.
func CyclesPerRequest(total int64, peakRPS, deployS float64) stats.Value {
	if total <= 0 {
		return stats.None
	}
	window := math.Trunc(deployS + 1)
	denom := peakRPS * window
	if denom <= 0 || math.IsNaN(denom) {
		return stats.None
	}
	return stats.Some(math.RoundToEven(float64(total) / denom))
}

// PeakThroughput is the highest throughput across load levels.
func PeakThroughput(rps []stats.Value) stats.Value {
	peak := stats.None
	for _, v := range rps {
		f, ok := v.Get()
		if !ok {
			continue
		}
		if p, ok := peak.Get(); !ok || f > p {
			peak = stats.Some(f)
		}
	}
	return peak
}
