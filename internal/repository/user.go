package repository

import (
	"context"
	"errors"

	"cogscreen-go/internal/database"
	"cogscreen-go/internal/models"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// CreateUser hashes the password and inserts the user.
func CreateUser(ctx context.Context, user *models.User, password string) error {
	if err := user.SetPassword(password); err != nil {
		return err
	}
	return database.DB.WithContext(ctx).Create(user).Error
}

func GetUserByPatientID(ctx context.Context, patientID string) (*models.User, error) {
	var user models.User
	err := database.DB.WithContext(ctx).First(&user, "patient_id = ?", patientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, err
}

func GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := database.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, err
}

// UpdateUserScores replaces the clinical scores of a user. Nil clears a score.
func UpdateUserScores(ctx context.Context, userID uint, cdrSum, mmse, cdrMemory, cdrGlob *float64) error {
	return database.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"cdr_sum":    cdrSum,
		"mmse_score": mmse,
		"cdr_memory": cdrMemory,
		"cdr_glob":   cdrGlob,
	}).Error
}

func UpdateUserPassword(ctx context.Context, userID uint, newPassword string) error {
	var user models.User
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	return database.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password", user.Password).Error
}

func DeleteUser(ctx context.Context, userID uint) error {
	return database.DB.WithContext(ctx).Delete(&models.User{}, userID).Error
}
