package monitor_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/mcpbench/internal/monitor"
)

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestParseDockerStats(t *testing.T) {
	log := `mcp_bench
{"cpu":"12.5%","mem":"256MiB / 512MiB"}

{"cpu":"30%","mem":"1.5GiB / 4GiB"}
{"cpu":"5%","mem":"2048kB / 1GiB"}
{"cpu":"7%","mem":"unknown"}
{"cpu": broken json
`
	samples, err := monitor.ParseDockerStats(strings.NewReader(log))
	if err != nil {
		t.Fatalf("ParseDockerStats: %v", err)
	}
	if len(samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(samples))
	}

	tests := []struct {
		cpu    float64
		rss    float64
		hasRSS bool
	}{
		{12.5, 256, true},
		{30, 1536, true},
		{5, 2, true},
		{7, 0, false},
	}
	for i, tt := range tests {
		cpu, _ := samples[i].CPUPercent.Get()
		if absf(cpu-tt.cpu) > 1e-9 {
			t.Errorf("sample %d cpu: got %v, want %v", i, cpu, tt.cpu)
		}
		rss, ok := samples[i].RSSMegabytes.Get()
		if ok != tt.hasRSS {
			t.Errorf("sample %d rss presence: got %v, want %v", i, ok, tt.hasRSS)
		}
		if ok && absf(rss-tt.rss) > 1e-9 {
			t.Errorf("sample %d rss: got %v, want %v", i, rss, tt.rss)
		}
	}
}

func TestParsePidstat(t *testing.T) {
	log := `Linux 6.1.0 (host)  01/02/2025  _x86_64_  (8 CPU)

12:00:00   UID  PID  %usr %system %guest %CPU CPU minflt/s RSS
12:00:01  1000 4242  5.00  2.00  0.00  7.0   3  0.00 204800
12:00:02  1000 4242  9.00  1.00  0.00  10.0  3  0.00 409600
12:00:03  1000 4242  9.00
12:00:04  1000 4242  9.00  1.00  0.00  n/a   3  0.00 409600
Average:  1000 4242  7.00  1.50  0.00  8.5   -  0.00 307200
`
	samples, err := monitor.ParsePidstat(strings.NewReader(log))
	if err != nil {
		t.Fatalf("ParsePidstat: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	cpu, _ := samples[0].CPUPercent.Get()
	rss, _ := samples[0].RSSMegabytes.Get()
	if cpu != 7.0 || rss != 200.0 {
		t.Errorf("first sample: got cpu=%v rss=%v, want 7.0/200.0", cpu, rss)
	}
}

func TestSummarize(t *testing.T) {
	samples, _ := monitor.ParseDockerStats(strings.NewReader(
		`{"cpu":"10.004%","mem":"100MiB / 1GiB"}
{"cpu":"20.001%","mem":"200.26MiB / 1GiB"}
{"cpu":"15%","mem":"bogus"}
`))
	u := monitor.Summarize(samples)
	if u.CPUSamples != 3 || u.RSSSamples != 2 {
		t.Errorf("sample counts: got cpu=%d rss=%d, want 3/2", u.CPUSamples, u.RSSSamples)
	}
	if u.MeanCPUPct != 15.0 {
		t.Errorf("mean cpu: got %v, want 15.0", u.MeanCPUPct)
	}
	if u.PeakCPUPct != 20.0 {
		t.Errorf("peak cpu: got %v, want 20.0", u.PeakCPUPct)
	}
	if u.MeanRSSMB != 150.1 {
		t.Errorf("mean rss: got %v, want 150.1", u.MeanRSSMB)
	}
	if u.PeakRSSMB != 200.3 {
		t.Errorf("peak rss: got %v, want 200.3", u.PeakRSSMB)
	}
}

func TestSummarizeEmptyKeepsZeroFallback(t *testing.T) {
	u := monitor.Summarize(nil)
	if u.MeanCPUPct != monitor.EmptyChannelValue || u.PeakRSSMB != monitor.EmptyChannelValue {
		t.Errorf("expected empty channels to report %v, got %+v", monitor.EmptyChannelValue, u)
	}
}

func TestDetectPrefersDockerStats(t *testing.T) {
	dir := t.TempDir()
	if v, _ := monitor.Detect(dir); v != monitor.VariantNone {
		t.Errorf("empty dir: got %v, want none", v)
	}
	os.WriteFile(filepath.Join(dir, monitor.PidstatFile), []byte(""), 0o644)
	if v, _ := monitor.Detect(dir); v != monitor.VariantPidstat {
		t.Errorf("pidstat only: got %v, want pidstat", v)
	}
	os.WriteFile(filepath.Join(dir, monitor.DockerStatsFile), []byte(""), 0o644)
	v, path := monitor.Detect(dir)
	if v != monitor.VariantDockerStats {
		t.Errorf("both present: got %v, want docker-stats", v)
	}
	if filepath.Base(path) != monitor.DockerStatsFile {
		t.Errorf("path: got %q", path)
	}
}

func TestReadMissingLog(t *testing.T) {
	u, v, err := monitor.Read(t.TempDir())
	if !errors.Is(err, monitor.ErrNoResourceLog) {
		t.Errorf("expected ErrNoResourceLog, got %v", err)
	}
	if v != monitor.VariantNone || u.MeanCPUPct != 0 {
		t.Errorf("unexpected result: %v %+v", v, u)
	}
}

func TestReadPidstat(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, monitor.PidstatFile), []byte(
		"12:00:01  1000 4242  5.00  2.00  0.00  7.0   3  0.00 204800\n"), 0o644)
	u, v, err := monitor.Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != monitor.VariantPidstat {
		t.Errorf("variant: got %v, want pidstat", v)
	}
	if u.MeanCPUPct != 7.0 || u.MeanRSSMB != 200.0 {
		t.Errorf("usage: got %+v", u)
	}
}

func TestReadKeepsSamplesBeforeOversizedLine(t *testing.T) {
	dir := t.TempDir()
	log := `{"cpu":"20%","mem":"100MiB / 1GiB"}` + "\n" +
		`{"cpu":"40%","mem":"300MiB / 1GiB"}` + "\n" +
		`{"cpu":"` + strings.Repeat("9", 2*1024*1024) + `"}` + "\n" +
		`{"cpu":"90%","mem":"900MiB / 1GiB"}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, monitor.DockerStatsFile), []byte(log), 0o644); err != nil {
		t.Fatal(err)
	}
	u, v, err := monitor.Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != monitor.VariantDockerStats {
		t.Errorf("variant: got %v", v)
	}
	if u.CPUSamples != 2 || u.MeanCPUPct != 30 || u.PeakRSSMB != 300 {
		t.Errorf("usage: got %+v", u)
	}
}
