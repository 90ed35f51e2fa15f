package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is a float that may be absent. The zero Value is None, so a missing
// measurement can never be mistaken for a measured zero.
type Value struct {
	v  float64
	ok bool
}

// None is the explicit "no data" marker.
var None = Value{}

// Some wraps v. NaN and ±Inf collapse to None.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return None
	}
	return Value{v: v, ok: true}
}

// FromPtr maps nil to None.
func FromPtr(p *float64) Value {
	if p == nil {
		return None
	}
	return Some(*p)
}

func (x Value) Get() (float64, bool) { return x.v, x.ok }

func (x Value) IsNone() bool { return !x.ok }

// Or returns the value or def when absent.
func (x Value) Or(def float64) float64 {
	if !x.ok {
		return def
	}
	return x.v
}

func (x Value) Ptr() *float64 {
	if !x.ok {
		return nil
	}
	v := x.v
	return &v
}

// String renders the shortest representation that parses back to the same
// float64. None renders as the empty string.
func (x Value) String() string {
	if !x.ok {
		return ""
	}
	return strconv.FormatFloat(x.v, 'f', -1, 64)
}

// ParseValue is the inverse of String. "", "NaN" and "null" are None.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return None, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return None, err
	}
	return Some(f), nil
}

func (x Value) MarshalJSON() ([]byte, error) {
	if !x.ok {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(x.v, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts numbers, numeric strings and booleans. Anything else
// decodes to None rather than failing the enclosing document.
func (x *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*x = None
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch t := raw.(type) {
	case float64:
		*x = Some(t)
	case bool:
		if t {
			*x = Some(1)
		} else {
			*x = Some(0)
		}
	case string:
		if v, err := ParseValue(strings.TrimSuffix(t, "%")); err == nil {
			*x = v
		}
	}
	return nil
}

// Floats wraps plain samples.
func Floats(xs ...float64) []Value {
	out := make([]Value, len(xs))
	for i, f := range xs {
		out[i] = Some(f)
	}
	return out
}

// Present returns the defined samples in order.
func Present(xs []Value) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if v, ok := x.Get(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Mean is the arithmetic mean over defined samples, None when there are none.
func Mean(xs []Value) Value {
	vals := Present(xs)
	if len(vals) == 0 {
		return None
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return Some(sum / float64(len(vals)))
}
