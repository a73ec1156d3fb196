package models

import (
	"encoding/json"
	"time"
)

// PredictionRecord keeps every model call with the features it was given.
type PredictionRecord struct {
	ID          uint   `gorm:"primaryKey"`
	OwnerID     string `gorm:"index"`
	Role        string
	Payload     json.RawMessage `gorm:"type:jsonb"`
	Prediction  int
	Probability float64
	CreatedAt   time.Time
}
