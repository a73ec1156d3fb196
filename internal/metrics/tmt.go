package metrics

import (
	"encoding/json"
	"time"

	"cogscreen-go/internal/models"
	"cogscreen-go/internal/tmt"
)

// TrailRawData is the JSON kept alongside each stored run.
type TrailRawData struct {
	Nodes       any                     `json:"nodes"`
	Connections any                     `json:"connections"`
	Metrics     map[string]MetricResult `json:"metrics"`
}

// BuildTMTResult turns a completed run into its database row.
func BuildTMTResult(ownerID string, c tmt.Completion) *models.TMTResult {
	drag := CalculateDragMetrics(c)

	path := make([]string, 0, len(c.Connections)+1)
	for i, conn := range c.Connections {
		if i == 0 {
			path = append(path, conn.From.Label.String())
		}
		path = append(path, conn.To.Label.String())
	}

	attempts := make([]models.TMTAttempt, 0, len(c.Attempts))
	for _, a := range c.Attempts {
		row := models.TMTAttempt{
			FromLabel:  a.From.String(),
			X:          a.X,
			Y:          a.Y,
			PathLength: a.Path,
			Elapsed:    a.Elapsed,
			Valid:      a.Valid,
		}
		if a.To != nil {
			row.ToLabel = a.To.String()
		}
		attempts = append(attempts, row)
	}

	completedAt := c.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	return &models.TMTResult{
		OwnerID:          ownerID,
		Variant:          c.Variant,
		DurationSeconds:  c.Result.Duration,
		Errors:           c.Result.Errors,
		Path:             path,
		PathEfficiency:   drag[KeyPathEfficiency].Value,
		ReleasePrecision: drag[KeyReleasePrecision].Value,
		RawData:          serializeTrailData(TrailRawData{Nodes: c.Nodes, Connections: c.Connections, Metrics: drag}),
		StartedAt:        c.StartedAt,
		CompletedAt:      completedAt,
		Attempts:         attempts,
	}
}

// TrailSummary pairs the latest A and B runs.
type TrailSummary struct {
	PartASeconds float64 `json:"partASeconds"`
	PartAErrors  int     `json:"partAErrors"`
	PartBSeconds float64 `json:"partBSeconds"`
	PartBErrors  int     `json:"partBErrors"`
	BToARatio    float64 `json:"bToARatio"`
	Complete     bool    `json:"complete"`
}

// Summarize builds the summary from the latest result of each part. Either
// may be nil.
func Summarize(a, b *tmt.Result) TrailSummary {
	var s TrailSummary
	if a != nil {
		s.PartASeconds = a.Duration
		s.PartAErrors = a.Errors
	}
	if b != nil {
		s.PartBSeconds = b.Duration
		s.PartBErrors = b.Errors
	}
	s.Complete = a != nil && b != nil
	s.BToARatio = calculateBToARatio(s.PartASeconds, s.PartBSeconds)
	return s
}

// Calculate B/A ratio (important clinical measure)
func calculateBToARatio(partA, partB float64) float64 {
	if partA <= 0 {
		return 0
	}
	return partB / partA
}

// Serialize trail data to JSON
func serializeTrailData(data TrailRawData) json.RawMessage {
	result, err := json.Marshal(data)
	if err != nil {
		return json.RawMessage("{}")
	}
	return result
}
