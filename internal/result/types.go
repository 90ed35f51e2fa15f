package result

import (
	"encoding/json"

	"github.com/signalnine/mcpbench/internal/stats"
)

// Dataset metric names as they appear in summaries and CSV headers.
const (
	MetricBLEU    = "bleu"
	MetricRouge   = "rouge"
	MetricPass1   = "pass1"
	MetricLatency = "latency_ms"
)

// Operational metric names, in extended_summary.json order.
const (
	OpsDeployTimeS    = "deploy_time_s"
	OpsColdStartMS    = "cold_start_ms"
	OpsMeanCPUPct     = "mean_cpu_pct"
	OpsPeakCPUPct     = "peak_cpu_pct"
	OpsMeanRSSMB      = "mean_rss_mb"
	OpsPeakRSSMB      = "peak_rss_mb"
	OpsImageSizeBytes = "image_size_bytes"
	OpsCyclesPerReq   = "cycles_per_req"
)

var (
	DatasetMetrics = []string{MetricBLEU, MetricRouge, MetricPass1, MetricLatency}
	OpsMetrics     = []string{
		OpsDeployTimeS, OpsColdStartMS,
		OpsMeanCPUPct, OpsPeakCPUPct,
		OpsMeanRSSMB, OpsPeakRSSMB,
		OpsImageSizeBytes, OpsCyclesPerReq,
	}
)

// EvalRecord is one scored example in a dataset-eval file.
type EvalRecord struct {
	ID        string      `json:"id,omitempty"`
	Prompt    string      `json:"prompt,omitempty"`
	Question  string      `json:"question,omitempty"`
	Ref       References  `json:"ref,omitempty"`
	Out       string      `json:"out"`
	NormOut   string      `json:"norm_out,omitempty"`
	LatencyMS stats.Value `json:"latency"`
	BLEU      stats.Value `json:"bleu"`
	Rouge     stats.Value `json:"rouge"`
	Pass1     stats.Value `json:"pass@1"`
	Error     string      `json:"error,omitempty"`
}

// References holds one or more reference answers. Files from single-answer
// datasets store a bare string; both shapes decode here, and a single
// reference is written back as a string.
type References []string

func (r References) MarshalJSON() ([]byte, error) {
	if len(r) == 1 {
		return json.Marshal(r[0])
	}
	return json.Marshal([]string(r))
}

func (r *References) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*r = References{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		*r = nil
		return nil
	}
	*r = many
	return nil
}

// DatasetSummary is one run's mean scores for one dataset. Count == 0 means
// the run had no usable eval file and every metric is None.
type DatasetSummary struct {
	Dataset   string
	BLEU      stats.Value
	Rouge     stats.Value
	Pass1     stats.Value
	LatencyMS stats.Value
	Count     int
}

func (s DatasetSummary) Metric(name string) stats.Value {
	switch name {
	case MetricBLEU:
		return s.BLEU
	case MetricRouge:
		return s.Rouge
	case MetricPass1:
		return s.Pass1
	case MetricLatency:
		return s.LatencyMS
	}
	return stats.None
}

// LoadStats is the Locust summary at one concurrency level.
type LoadStats struct {
	P50MS         stats.Value `json:"p50_ms"`
	P95MS         stats.Value `json:"p95_ms"`
	P99MS         stats.Value `json:"p99_ms"`
	ThroughputRPS stats.Value `json:"throughput_rps"`
}

// ExtendedSummary is the extended_summary.json document written per run.
type ExtendedSummary struct {
	Mode           string               `json:"mode,omitempty"`
	DeployTimeS    stats.Value          `json:"deploy_time_s"`
	ColdStartMS    stats.Value          `json:"cold_start_ms"`
	MeanCPUPct     stats.Value          `json:"mean_cpu_pct"`
	PeakCPUPct     stats.Value          `json:"peak_cpu_pct"`
	MeanRSSMB      stats.Value          `json:"mean_rss_mb"`
	PeakRSSMB      stats.Value          `json:"peak_rss_mb"`
	ImageSizeBytes stats.Value          `json:"image_size_bytes"`
	CyclesPerReq   stats.Value          `json:"cycles_per_req"`
	PerLoad        map[string]LoadStats `json:"per_load"`
}

// OpsSummary is the scalar half of an ExtendedSummary.
type OpsSummary struct {
	DeployTimeS    stats.Value
	ColdStartMS    stats.Value
	MeanCPUPct     stats.Value
	PeakCPUPct     stats.Value
	MeanRSSMB      stats.Value
	PeakRSSMB      stats.Value
	ImageSizeBytes stats.Value
	CyclesPerReq   stats.Value
}

func (s *ExtendedSummary) Ops() OpsSummary {
	return OpsSummary{
		DeployTimeS:    s.DeployTimeS,
		ColdStartMS:    s.ColdStartMS,
		MeanCPUPct:     s.MeanCPUPct,
		PeakCPUPct:     s.PeakCPUPct,
		MeanRSSMB:      s.MeanRSSMB,
		PeakRSSMB:      s.PeakRSSMB,
		ImageSizeBytes: s.ImageSizeBytes,
		CyclesPerReq:   s.CyclesPerReq,
	}
}

func (s OpsSummary) Metric(name string) stats.Value {
	switch name {
	case OpsDeployTimeS:
		return s.DeployTimeS
	case OpsColdStartMS:
		return s.ColdStartMS
	case OpsMeanCPUPct:
		return s.MeanCPUPct
	case OpsPeakCPUPct:
		return s.PeakCPUPct
	case OpsMeanRSSMB:
		return s.MeanRSSMB
	case OpsPeakRSSMB:
		return s.PeakRSSMB
	case OpsImageSizeBytes:
		return s.ImageSizeBytes
	case OpsCyclesPerReq:
		return s.CyclesPerReq
	}
	return stats.None
}

// LoadSample is one run's measurement at one concurrency level.
type LoadSample struct {
	Users         int
	P95MS         stats.Value
	ThroughputRPS stats.Value
}
