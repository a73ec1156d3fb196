// Package prediction assembles a participant's screening results into the
// feature vector of the dementia risk model and calls the model service.
package prediction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cogscreen-go/internal/results"
)

// Payload is the model's input. Field names are the model's feature names.
type Payload struct {
	CDRSum         float64 `json:"CDR_SUM"`
	CDRMemory      float64 `json:"CDR_MEMORY"`
	CDRGlob        float64 `json:"CDR_GLOB"`
	MMSE           float64 `json:"MMSE"`
	AnimalCount    float64 `json:"ANIMAL_COUNT"`
	VegetableCount float64 `json:"VEGETABLE_COUNT"`
	TrailASeconds  float64 `json:"TRAIL_A_SECONDS"`
	TrailBSeconds  float64 `json:"TRAIL_B_SECONDS"`
	MemoryDecline  float64 `json:"MEMORY_DECLINE"`
}

// Scores are clinical scores known for a participant. Nil means unknown.
type Scores struct {
	CDRSum    *float64
	CDRMemory *float64
	CDRGlob   *float64
	MMSE      *float64
}

// resolve picks the first known score, else 0.
func resolve(primary, fallback *float64) float64 {
	if primary != nil {
		return *primary
	}
	if fallback != nil {
		return *fallback
	}
	return 0
}

type verbalResult struct {
	Total float64 `json:"total"`
}

type trailResult struct {
	Duration float64 `json:"duration"`
}

// Collect builds the payload for owner. Registered user scores win over the
// scores given at guest intake; missing results count as 0.
func Collect(ctx context.Context, store results.Store, owner string, user, guest Scores) (Payload, error) {
	p := Payload{
		CDRSum:    resolve(user.CDRSum, guest.CDRSum),
		CDRMemory: resolve(user.CDRMemory, guest.CDRMemory),
		CDRGlob:   resolve(user.CDRGlob, guest.CDRGlob),
		MMSE:      resolve(user.MMSE, guest.MMSE),
	}

	var err error
	if p.AnimalCount, err = readTotal(ctx, store, owner, results.KeyVerbalAnimals); err != nil {
		return p, err
	}
	if p.VegetableCount, err = readTotal(ctx, store, owner, results.KeyVerbalVegetables); err != nil {
		return p, err
	}
	if p.TrailASeconds, err = readDuration(ctx, store, owner, results.KeyTrailA); err != nil {
		return p, err
	}
	if p.TrailBSeconds, err = readDuration(ctx, store, owner, results.KeyTrailB); err != nil {
		return p, err
	}

	answer, _, err := results.NewSlot[string](store, owner, results.KeyMemoryDecline).Read(ctx)
	if err != nil {
		return p, err
	}
	p.MemoryDecline = parseAnswer(answer)
	return p, nil
}

func readTotal(ctx context.Context, store results.Store, owner, key string) (float64, error) {
	v, _, err := results.NewSlot[verbalResult](store, owner, key).Read(ctx)
	return v.Total, err
}

func readDuration(ctx context.Context, store results.Store, owner, key string) (float64, error) {
	v, _, err := results.NewSlot[trailResult](store, owner, key).Read(ctx)
	return v.Duration, err
}

func parseAnswer(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// Result is the model's verdict.
type Result struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

const (
	lowRiskMessage      = "Prediction: low risk of dementia within 2 years"
	possibleRiskMessage = "Prediction: possible dementia within 2 years, further examination is recommended"
)

// Message is the participant-facing summary.
func (r Result) Message() string {
	if r.Prediction == 0 {
		return lowRiskMessage
	}
	return possibleRiskMessage
}

// Percentage formats the probability with two decimals.
func (r Result) Percentage() string {
	return fmt.Sprintf("%.2f%%", r.Probability*100)
}
