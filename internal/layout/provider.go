package layout

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
)

// Mode selects how a Provider places nodes.
type Mode string

const (
	ModeRandom Mode = "random"
	ModeFixed  Mode = "fixed"
)

// Provider produces a fresh node set for one test variant.
type Provider struct {
	Mode     Mode
	Labels   []Label
	Config   Config
	Template []Point // designer coordinates, used by ModeFixed and as fallback
	rng      *rand.Rand
}

// NewProvider seeds the provider from crypto/rand.
func NewProvider(mode Mode, labels []Label, cfg Config, template []Point) (*Provider, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeededProvider(mode, labels, cfg, template, seed), nil
}

// NewSeededProvider is NewProvider with a caller-supplied seed.
func NewSeededProvider(mode Mode, labels []Label, cfg Config, template []Point, seed int64) *Provider {
	return &Provider{
		Mode:     mode,
		Labels:   labels,
		Config:   cfg,
		Template: template,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Generate returns a new layout. A random layout that could not place every
// label falls back to the fixed template when one is configured.
func (p *Provider) Generate() ([]Node, error) {
	switch p.Mode {
	case ModeFixed:
		return Fixed(p.Labels, p.Template)
	case ModeRandom, "":
		nodes, err := Random(p.rng, p.Labels, p.Config)
		if errors.Is(err, ErrLayoutExhausted) && len(p.Template) == len(p.Labels) {
			return Fixed(p.Labels, p.Template)
		}
		return nodes, err
	default:
		return nil, fmt.Errorf("unknown layout mode %q", p.Mode)
	}
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
