package repository

import (
	"context"
	"errors"

	"cogscreen-go/internal/database"
	"cogscreen-go/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNoResult = errors.New("no result recorded")

// SaveTMTResult stores a run summary and its attempts in a single transaction.
func SaveTMTResult(ctx context.Context, result *models.TMTResult) error {
	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Attempts").Create(result).Error; err != nil {
			return err
		}
		if len(result.Attempts) == 0 {
			return nil
		}
		for i := range result.Attempts {
			result.Attempts[i].ResultID = result.ID
		}
		return tx.CreateInBatches(result.Attempts, 100).Error
	})
}

// LatestTMTResult returns the most recent completed run of a variant.
func LatestTMTResult(ctx context.Context, ownerID, variant string) (*models.TMTResult, error) {
	var result models.TMTResult
	err := database.DB.WithContext(ctx).
		Where("owner_id = ? AND variant = ?", ownerID, variant).
		Order("completed_at DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoResult
	}
	return &result, err
}

// SaveVerbalFluencyResult records a finalized recording. A second analysis of
// the same recording replaces the first.
func SaveVerbalFluencyResult(ctx context.Context, result *models.VerbalFluencyResult) error {
	return database.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recording_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total", "analysis"}),
	}).Create(result).Error
}

func SavePredictionRecord(ctx context.Context, record *models.PredictionRecord) error {
	return database.DB.WithContext(ctx).Create(record).Error
}
