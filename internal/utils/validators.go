package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ValidationError reports a rejected form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// ToNumber accepts JSON numbers and numeric strings.
func ToNumber(field string, raw any) (float64, error) {
	var (
		v   float64
		err error
	)
	switch x := raw.(type) {
	case float64:
		v = x
	case int:
		v = float64(x)
	case json.Number:
		v, err = x.Float64()
	case string:
		v, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: field, Message: "must be a number"}
	}
	return v, nil
}

// ValidateCDRSum accepts 0 to 18 in steps of 0.5, except 16.5 and 17.5.
func ValidateCDRSum(raw any) (float64, error) {
	v, err := ToNumber("CDRSUM", raw)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 18 {
		return 0, &ValidationError{Field: "CDRSUM", Message: "must be between 0 and 18"}
	}
	if v*2 != math.Trunc(v*2) {
		return 0, &ValidationError{Field: "CDRSUM", Message: "must be a multiple of 0.5"}
	}
	if v == 16.5 || v == 17.5 {
		return 0, &ValidationError{Field: "CDRSUM", Message: "cannot be 16.5 or 17.5"}
	}
	return v, nil
}

// ValidateCDRScore accepts a single CDR box score: 0, 0.5, 1, 2 or 3.
func ValidateCDRScore(field string, raw any) (float64, error) {
	v, err := ToNumber(field, raw)
	if err != nil {
		return 0, err
	}
	switch v {
	case 0, 0.5, 1, 2, 3:
		return v, nil
	}
	return 0, &ValidationError{Field: field, Message: "must be one of 0, 0.5, 1, 2, 3"}
}

// ValidateMMSE accepts an integer from 0 to 30.
func ValidateMMSE(raw any) (int, error) {
	v, err := ToNumber("NACCMMSE", raw)
	if err != nil {
		return 0, &ValidationError{Field: "NACCMMSE", Message: "must be an integer"}
	}
	if v != math.Trunc(v) {
		return 0, &ValidationError{Field: "NACCMMSE", Message: "must be an integer"}
	}
	if v < 0 || v > 30 {
		return 0, &ValidationError{Field: "NACCMMSE", Message: "must be between 0 and 30"}
	}
	return int(v), nil
}

// IsComplexPassword checks if the password meets the complexity requirements.
func IsComplexPassword(password string) bool {
	var (
		hasMinLen  = len(password) >= 8
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	return hasMinLen && hasUpper && hasLower && hasNumber && hasSpecial
}
