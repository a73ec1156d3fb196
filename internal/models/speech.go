package models

import (
	"encoding/json"
	"time"
)

// VerbalFluencyResult is the speech backend's analysis of one recording.
type VerbalFluencyResult struct {
	ID          uint   `gorm:"primaryKey"`
	OwnerID     string `gorm:"index"`
	RecordingID string `gorm:"uniqueIndex"`
	Category    string
	Total       int
	Analysis    json.RawMessage `gorm:"type:jsonb"`
	CreatedAt   time.Time
}
