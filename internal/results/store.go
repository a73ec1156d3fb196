// Package results persists per-owner test results as JSON documents keyed by
// test variant, the server-side counterpart of the browser's durable
// storage.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no value is stored under a key.
var ErrNotFound = errors.New("results: not found")

// Storage keys.
const (
	KeyTrailA           = "trailMakingTestAResult"
	KeyTrailB           = "trailMakingTestBResult"
	KeyVerbalAnimals    = "verbalFluencyResult_animals"
	KeyVerbalVegetables = "verbalFluencyResult_vegetables"
	KeyMemoryDecline    = "memoryDeclineAnswer"
)

// TestRecordKeys are the keys removed when a session ends.
var TestRecordKeys = []string{
	KeyTrailA,
	KeyTrailB,
	KeyVerbalAnimals,
	KeyVerbalVegetables,
	KeyMemoryDecline,
}

// VerbalFluencyKey returns the key of a verbal fluency category.
func VerbalFluencyKey(category string) string {
	return "verbalFluencyResult_" + category
}

// Store is an owner-scoped key/value store of JSON documents. Writes fully
// overwrite the previous value.
type Store interface {
	Write(ctx context.Context, owner, key string, value []byte) error
	Read(ctx context.Context, owner, key string) ([]byte, error)
	Clear(ctx context.Context, owner, key string) error
	ClearAll(ctx context.Context, owner string, keys ...string) error
	Close() error
}

// Slot binds a store location to a value type.
type Slot[T any] struct {
	store Store
	owner string
	key   string
}

// NewSlot returns a typed view of one key.
func NewSlot[T any](store Store, owner, key string) Slot[T] {
	return Slot[T]{store: store, owner: owner, key: key}
}

// Key returns the storage key.
func (s Slot[T]) Key() string { return s.key }

// Write stores v, replacing any earlier value.
func (s Slot[T]) Write(ctx context.Context, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.key, err)
	}
	return s.store.Write(ctx, s.owner, s.key, payload)
}

// Read returns the stored value. ok is false when nothing is stored.
func (s Slot[T]) Read(ctx context.Context) (v T, ok bool, err error) {
	payload, err := s.store.Read(ctx, s.owner, s.key)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, false, fmt.Errorf("unmarshal %s: %w", s.key, err)
	}
	return v, true, nil
}

// Clear removes the value. Clearing an empty slot is not an error.
func (s Slot[T]) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.owner, s.key)
}

func validate(owner, key string) error {
	if owner == "" {
		return fmt.Errorf("results: owner is required")
	}
	if key == "" {
		return fmt.Errorf("results: key is required")
	}
	return nil
}
