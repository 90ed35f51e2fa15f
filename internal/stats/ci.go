package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Z95 is the two-sided normal quantile used for the 95% interval. The
// normal approximation is used for every n, including small run counts.
const Z95 = 1.96

// Aggregate summarizes one group of per-run samples.
// N counts contributing samples; when N == 0 every field is None.
type Aggregate struct {
	Mean   Value `json:"mean"`
	CILow  Value `json:"ci_low"`
	CIHigh Value `json:"ci_high"`
	N      int   `json:"n"`
}

func (a Aggregate) Empty() bool { return a.N == 0 }

// HalfWidth is CIHigh - Mean, or None for an empty aggregate.
func (a Aggregate) HalfWidth() Value {
	m, ok := a.Mean.Get()
	hi, ok2 := a.CIHigh.Get()
	if !ok || !ok2 {
		return None
	}
	return Some(hi - m)
}

// CI95 computes the sample mean and a 95% confidence interval over the
// defined samples. Absent entries are dropped before anything is computed.
// A single sample yields a zero-width interval.
func CI95(samples []Value) Aggregate {
	vals := Present(samples)
	switch len(vals) {
	case 0:
		return Aggregate{}
	case 1:
		m := Some(vals[0])
		return Aggregate{Mean: m, CILow: m, CIHigh: m, N: 1}
	}
	mean, std := stat.MeanStdDev(vals, nil)
	d := Z95 * std / math.Sqrt(float64(len(vals)))
	return Aggregate{
		Mean:   Some(mean),
		CILow:  Some(mean - d),
		CIHigh: Some(mean + d),
		N:      len(vals),
	}
}
