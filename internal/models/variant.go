// variant.go
package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodePoint is one designer coordinate in a fixed layout.
type NodePoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// VariantDef struct to match the YAML structure
type VariantDef struct {
	ID          string      `yaml:"id"`
	Title       string      `yaml:"title"`
	StorageKey  string      `yaml:"storage_key"`
	Sequence    []string    `yaml:"sequence"`
	Layout      string      `yaml:"layout"` // random | fixed
	Radius      float64     `yaml:"radius"`
	Separation  float64     `yaml:"separation"`
	MaxAttempts int         `yaml:"max_attempts"`
	Width       float64     `yaml:"width"`
	Height      float64     `yaml:"height"`
	TimerPolicy string      `yaml:"timer_policy"` // explicit_start | first_press
	Points      []NodePoint `yaml:"points,omitempty"`
}

// VariantCatalog holds every configured trail making test variant.
type VariantCatalog struct {
	Variants []VariantDef `yaml:"variants"`
}

// LoadVariantCatalog reads and parses the variants.yaml file
func LoadVariantCatalog(path string) (*VariantCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variant file: %w", err)
	}

	var catalog VariantCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variant YAML: %w", err)
	}
	if len(catalog.Variants) == 0 {
		return nil, fmt.Errorf("variant file %s defines no variants", path)
	}

	return &catalog, nil
}
