package cost_test

import (
	"strings"
	"testing"

	"github.com/signalnine/mcpbench/internal/cost"
	"github.com/signalnine/mcpbench/internal/stats"
)

func TestParsePerfCycles(t *testing.T) {
	out := `
 Performance counter stats for process id '4242':

     60,012.34 msec task-clock                #    1.000 CPUs utilized
 120,000,000,000      cycles                    #    2.000 GHz
  90,000,000,000      instructions              #    0.75  insn per cycle
`
	total, ok, err := cost.ParsePerfCycles(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParsePerfCycles: %v", err)
	}
	if !ok || total != 120_000_000_000 {
		t.Errorf("got %d (ok=%v), want 120000000000", total, ok)
	}
}

func TestParsePerfCyclesNotCounted(t *testing.T) {
	_, ok, err := cost.ParsePerfCycles(strings.NewReader("   <not counted>      cycles\n"))
	if err != nil {
		t.Fatalf("ParsePerfCycles: %v", err)
	}
	if ok {
		t.Error("expected ok=false for uncounted cycles")
	}
}

func TestCyclesPerRequest(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		peak    float64
		deploy  float64
		want    float64
		wantNil bool
	}{
		{"whole deploy seconds", 1_000_000, 50, 3, 5000, false},
		{"fractional deploy truncates after +1", 1_000_000, 50, 3.9, 5000, false},
		{"zero throughput", 1_000_000, 0, 3, 0, true},
		{"no cycles", 0, 50, 3, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cost.CyclesPerRequest(tt.total, tt.peak, tt.deploy)
			if tt.wantNil {
				if !got.IsNone() {
					t.Errorf("expected none, got %v", got)
				}
				return
			}
			if v, _ := got.Get(); v != tt.want {
				t.Errorf("got %v, want %v", v, tt.want)
			}
		})
	}
}

func TestPeakThroughput(t *testing.T) {
	got := cost.PeakThroughput([]stats.Value{stats.Some(10), stats.None, stats.Some(42.5), stats.Some(30)})
	if v, _ := got.Get(); v != 42.5 {
		t.Errorf("got %v, want 42.5", v)
	}
	if !cost.PeakThroughput(nil).IsNone() {
		t.Error("expected none for no levels")
	}
}
