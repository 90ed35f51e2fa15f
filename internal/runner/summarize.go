package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/signalnine/mcpbench/internal/cost"
	"github.com/signalnine/mcpbench/internal/docker"
	"github.com/signalnine/mcpbench/internal/loadtest"
	"github.com/signalnine/mcpbench/internal/monitor"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/signalnine/mcpbench/internal/stats"
)

const (
	ModeBare      = "bare"
	ModeContainer = "container"
)

// ImageSizer reports the size of a container image in bytes.
type ImageSizer func(ctx context.Context, ref string) (int64, error)

type SummarizeOpts struct {
	LogDir      string
	Mode        string
	DeployTimeS float64
	ColdStartMS float64
	// ImageSize wins over Image when both are set.
	ImageSize int64
	Image     string
	Sizer     ImageSizer
}

// SummarizeRun folds one run's raw logs into extended_summary.json inside
// LogDir and returns what it wrote. Missing monitor or perf logs leave the
// matching fields at their fallback; only failing to write is an error.
func SummarizeRun(ctx context.Context, opts *SummarizeOpts) (*result.ExtendedSummary, error) {
	if opts.Mode != ModeBare && opts.Mode != ModeContainer {
		return nil, fmt.Errorf("unknown mode %q (want %s or %s)", opts.Mode, ModeBare, ModeContainer)
	}

	levels, err := loadtest.ReadDir(opts.LogDir)
	if err != nil {
		return nil, err
	}
	perLoad := make(map[string]result.LoadStats, len(levels))
	rps := make([]stats.Value, 0, len(levels))
	for _, l := range levels {
		perLoad[strconv.Itoa(l.Users)] = l.Stats
		rps = append(rps, l.Stats.ThroughputRPS)
	}

	usage, variant, err := monitor.Read(opts.LogDir)
	if err != nil {
		slog.Warn("no resource samples", "dir", opts.LogDir, "err", err)
	} else {
		slog.Debug("resource log parsed", "variant", variant, "cpu_samples", usage.CPUSamples, "rss_samples", usage.RSSSamples)
	}

	s := &result.ExtendedSummary{
		Mode:         opts.Mode,
		DeployTimeS:  stats.Some(opts.DeployTimeS),
		ColdStartMS:  stats.Some(opts.ColdStartMS),
		MeanCPUPct:   stats.Some(usage.MeanCPUPct),
		PeakCPUPct:   stats.Some(usage.PeakCPUPct),
		MeanRSSMB:    stats.Some(usage.MeanRSSMB),
		PeakRSSMB:    stats.Some(usage.PeakRSSMB),
		CyclesPerReq: cyclesPerRequest(opts, rps),
		PerLoad:      perLoad,
	}
	s.ImageSizeBytes = imageSize(ctx, opts)

	if _, err := result.WriteExtendedSummary(opts.LogDir, s); err != nil {
		return nil, err
	}
	return s, nil
}

func cyclesPerRequest(opts *SummarizeOpts, rps []stats.Value) stats.Value {
	path := filepath.Join(opts.LogDir, cost.PerfCyclesFile)
	total, ok, err := cost.ReadPerfCycles(path)
	if errors.Is(err, fs.ErrNotExist) {
		return stats.None
	}
	if err != nil {
		slog.Warn("reading perf cycles", "path", path, "err", err)
		return stats.None
	}
	if !ok {
		return stats.None
	}
	peak, ok := cost.PeakThroughput(rps).Get()
	if !ok {
		slog.Warn("perf cycles present but no throughput measured", "dir", opts.LogDir)
		return stats.None
	}
	return cost.CyclesPerRequest(total, peak, opts.DeployTimeS)
}

func imageSize(ctx context.Context, opts *SummarizeOpts) stats.Value {
	if opts.ImageSize > 0 {
		return stats.Some(float64(opts.ImageSize))
	}
	if opts.Image == "" {
		return stats.None
	}
	sizer := opts.Sizer
	if sizer == nil {
		sizer = docker.ImageSize
	}
	size, err := sizer(ctx, opts.Image)
	if err != nil {
		slog.Warn("image size unavailable", "image", opts.Image, "err", err)
		return stats.None
	}
	return stats.Some(float64(size))
}
