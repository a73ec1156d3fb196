package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// TMTResult holds one completed trail making run.
type TMTResult struct {
	ID               uint   `gorm:"primaryKey"`
	OwnerID          string `gorm:"index:idx_tmt_owner_variant"`
	Variant          string `gorm:"index:idx_tmt_owner_variant"`
	DurationSeconds  float64
	Errors           int
	Path             pq.StringArray `gorm:"type:text[]"`
	PathEfficiency   float64
	ReleasePrecision float64
	RawData          json.RawMessage `gorm:"type:jsonb"`
	StartedAt        time.Time
	CompletedAt      time.Time
	CreatedAt        time.Time
	Attempts         []TMTAttempt `gorm:"foreignKey:ResultID"`
}

// TMTAttempt is a single release during a run.
type TMTAttempt struct {
	ID         uint `gorm:"primaryKey"`
	ResultID   uint `gorm:"index"`
	FromLabel  string
	ToLabel    string
	X          float64
	Y          float64
	PathLength float64
	Elapsed    float64
	Valid      bool
}
