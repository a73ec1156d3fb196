package metrics

import (
	"cogscreen-go/internal/tmt"
)

type MetricResult struct {
	Value      float64 `json:"value"`
	Calculated bool    `json:"calculated"`
	SampleSize int     `json:"sampleSize,omitempty"`
}

// Metric keys.
const (
	KeyReleasePrecision = "release_precision"
	KeyPathEfficiency   = "path_efficiency"
	KeyPaceVariability  = "pace_variability"
)

// CalculateDragMetrics derives motor metrics from the release log of a
// completed run.
func CalculateDragMetrics(c tmt.Completion) map[string]MetricResult {
	return map[string]MetricResult{
		KeyReleasePrecision: calculateReleasePrecision(c),
		KeyPathEfficiency:   calculatePathEfficiency(c),
		KeyPaceVariability:  calculatePaceVariability(c),
	}
}
