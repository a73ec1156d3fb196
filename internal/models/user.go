package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is a registered participant. Clinical scores are nullable; unknown
// scores fall back to guest intake values or zero at prediction time.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	PatientID string `gorm:"uniqueIndex;not null"`
	Name      string
	Gender    string
	BirthYear int
	Password  string `json:"-"`
	CDRSum    *float64
	MMSEScore *float64
	CDRMemory *float64
	CDRGlob   *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile is the login response's view of a user.
type UserProfile struct {
	Name      string   `json:"name"`
	Gender    string   `json:"gender"`
	BirthYear int      `json:"birth_year"`
	CDRSum    *float64 `json:"CDR_SUM"`
	MMSEScore *float64 `json:"MMSE_Score"`
	CDRMemory *float64 `json:"MEMORY"`
	CDRGlob   *float64 `json:"CDRGLOB"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{
		Name:      u.Name,
		Gender:    u.Gender,
		BirthYear: u.BirthYear,
		CDRSum:    u.CDRSum,
		MMSEScore: u.MMSEScore,
		CDRMemory: u.CDRMemory,
		CDRGlob:   u.CDRGlob,
	}
}

// SetPassword stores the bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}
