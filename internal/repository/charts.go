package repository

import (
	"context"
	"fmt"
	"time"

	"cogscreen-go/internal/database"
)

type TimelineDataPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// timelineColumns maps chartable metric keys to tmt_results columns.
var timelineColumns = map[string]string{
	"duration":          "duration_seconds",
	"errors":            "errors",
	"path_efficiency":   "path_efficiency",
	"release_precision": "release_precision",
}

// TimelineMetrics lists the metric keys GetTimelineData accepts.
func TimelineMetrics() []string {
	return []string{"duration", "errors", "path_efficiency", "release_precision"}
}

// GetTimelineData returns one point per completed run, oldest first.
func GetTimelineData(ctx context.Context, ownerID, variant, metricKey string) ([]TimelineDataPoint, error) {
	column, ok := timelineColumns[metricKey]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metricKey)
	}
	var data []TimelineDataPoint
	query := fmt.Sprintf(`
		SELECT completed_at AS date, %s::float AS value
		FROM tmt_results
		WHERE owner_id = ? AND variant = ?
		ORDER BY completed_at;
	`, column)
	err := database.DB.WithContext(ctx).Raw(query, ownerID, variant).Scan(&data).Error
	return data, err
}
