package tmt

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/models"
)

var (
	ErrUnknownVariant = errors.New("tmt: unknown variant")
	ErrInvalidVariant = errors.New("tmt: invalid variant")
)

// TimerPolicy decides when the stopwatch starts.
type TimerPolicy string

const (
	// ExplicitStart starts the timer when Start is called.
	ExplicitStart TimerPolicy = "explicit_start"
	// FirstPress starts the timer on the first accepted press on the first
	// node of the sequence.
	FirstPress TimerPolicy = "first_press"
)

// Sequence is the canonical visiting order of a variant.
type Sequence []layout.Label

// Index returns the position of l in the sequence, or -1.
func (s Sequence) Index(l layout.Label) int {
	for i, x := range s {
		if x == l {
			return i
		}
	}
	return -1
}

// Less orders labels by their position in the sequence. Labels outside the
// sequence sort last.
func (s Sequence) Less(a, b layout.Label) bool {
	ia, ib := s.Index(a), s.Index(b)
	if ia < 0 {
		return false
	}
	if ib < 0 {
		return true
	}
	return ia < ib
}

// At returns the label at i, or false when i is past the end.
func (s Sequence) At(i int) (layout.Label, bool) {
	if i < 0 || i >= len(s) {
		return layout.Label{}, false
	}
	return s[i], true
}

// Variant is one configured trail making test.
type Variant struct {
	ID          string
	Title       string
	StorageKey  string
	Sequence    Sequence
	Mode        layout.Mode
	Radius      float64
	Separation  float64
	MaxAttempts int
	Canvas      layout.Canvas
	FixedPoints []layout.Point
	TimerPolicy TimerPolicy
}

// LayoutConfig returns the sampler settings of the variant.
func (v Variant) LayoutConfig() layout.Config {
	return layout.Config{
		Canvas:      v.Canvas,
		Radius:      v.Radius,
		Separation:  v.Separation,
		MaxAttempts: v.MaxAttempts,
	}
}

// Validate checks that a variant can be played.
func (v Variant) Validate() error {
	switch {
	case v.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidVariant)
	case len(v.Sequence) < 2:
		return fmt.Errorf("%w: variant %s needs at least two nodes", ErrInvalidVariant, v.ID)
	case v.Radius <= 0:
		return fmt.Errorf("%w: variant %s has non-positive radius", ErrInvalidVariant, v.ID)
	case v.Mode == layout.ModeFixed && len(v.FixedPoints) != len(v.Sequence),
		len(v.FixedPoints) > 0 && len(v.FixedPoints) != len(v.Sequence):
		return fmt.Errorf("%w: variant %s has %d points for %d labels", ErrInvalidVariant, v.ID, len(v.FixedPoints), len(v.Sequence))
	case v.TimerPolicy != ExplicitStart && v.TimerPolicy != FirstPress:
		return fmt.Errorf("%w: variant %s has timer policy %q", ErrInvalidVariant, v.ID, v.TimerPolicy)
	}
	seen := make(map[layout.Label]bool, len(v.Sequence))
	for _, l := range v.Sequence {
		if seen[l] {
			return fmt.Errorf("%w: variant %s repeats label %s", ErrInvalidVariant, v.ID, l)
		}
		seen[l] = true
	}
	return nil
}

// Catalog maps variant ids to variants.
type Catalog map[string]Variant

// Get looks up a variant by id, case-insensitively.
func (c Catalog) Get(id string) (Variant, error) {
	if v, ok := c[strings.ToUpper(id)]; ok {
		return v, nil
	}
	return Variant{}, fmt.Errorf("%w: %s", ErrUnknownVariant, id)
}

// IDs returns the variant ids in a stable order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultCatalog returns the built-in A and B variants.
func DefaultCatalog() Catalog {
	a := Variant{
		ID:          "A",
		Title:       "Trail Making Test A",
		StorageKey:  "trailMakingTestAResult",
		Mode:        layout.ModeRandom,
		Radius:      29,
		Separation:  2.8,
		MaxAttempts: 3000,
		Canvas:      layout.Canvas{Width: 1100, Height: 620},
		TimerPolicy: ExplicitStart,
	}
	for i := 1; i <= 24; i++ {
		a.Sequence = append(a.Sequence, layout.Num(i))
	}

	b := Variant{
		ID:          "B",
		Title:       "Trail Making Test B",
		StorageKey:  "trailMakingTestBResult",
		Mode:        layout.ModeRandom,
		Radius:      29,
		Separation:  3,
		MaxAttempts: 3000,
		Canvas:      layout.Canvas{Width: 1100, Height: 620},
		TimerPolicy: ExplicitStart,
		FixedPoints: []layout.Point{
			{X: 115, Y: 85}, {X: 320, Y: 100}, {X: 95, Y: 480}, {X: 520, Y: 150},
			{X: 205, Y: 205}, {X: 620, Y: 320}, {X: 735, Y: 145}, {X: 950, Y: 160},
			{X: 890, Y: 245}, {X: 1020, Y: 480}, {X: 650, Y: 555}, {X: 295, Y: 560},
			{X: 300, Y: 320}, {X: 590, Y: 370}, {X: 150, Y: 330}, {X: 355, Y: 230},
			{X: 390, Y: 435}, {X: 850, Y: 70}, {X: 1010, Y: 90}, {X: 860, Y: 355},
			{X: 935, Y: 560}, {X: 610, Y: 65}, {X: 205, Y: 420}, {X: 470, Y: 500},
			{X: 650, Y: 185},
		},
	}
	letters := "ABCDEFGHIJKL"
	for i := 1; i <= 13; i++ {
		b.Sequence = append(b.Sequence, layout.Num(i))
		if i <= len(letters) {
			b.Sequence = append(b.Sequence, layout.Sym(letters[i-1:i]))
		}
	}

	return Catalog{a.ID: a, b.ID: b}
}

// FromDef converts a YAML variant definition.
func FromDef(def models.VariantDef) (Variant, error) {
	v := Variant{
		ID:          strings.ToUpper(def.ID),
		Title:       def.Title,
		StorageKey:  def.StorageKey,
		Mode:        layout.Mode(def.Layout),
		Radius:      def.Radius,
		Separation:  def.Separation,
		MaxAttempts: def.MaxAttempts,
		Canvas:      layout.Canvas{Width: def.Width, Height: def.Height},
		TimerPolicy: TimerPolicy(def.TimerPolicy),
	}
	if v.Mode == "" {
		v.Mode = layout.ModeRandom
	}
	if v.TimerPolicy == "" {
		v.TimerPolicy = ExplicitStart
	}
	if v.MaxAttempts <= 0 {
		v.MaxAttempts = 3000
	}
	if v.StorageKey == "" {
		v.StorageKey = "trailMakingTest" + v.ID + "Result"
	}
	for _, raw := range def.Sequence {
		l, err := layout.ParseLabel(raw)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: variant %s: %v", ErrInvalidVariant, v.ID, err)
		}
		v.Sequence = append(v.Sequence, l)
	}
	for _, p := range def.Points {
		v.FixedPoints = append(v.FixedPoints, layout.Point{X: p.X, Y: p.Y})
	}
	return v, v.Validate()
}

// LoadCatalog reads variants from a YAML file. A missing file yields the
// built-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultCatalog(), nil
	}
	defs, err := models.LoadVariantCatalog(path)
	if err != nil {
		return nil, err
	}
	catalog := make(Catalog, len(defs.Variants))
	for _, def := range defs.Variants {
		v, err := FromDef(def)
		if err != nil {
			return nil, err
		}
		catalog[v.ID] = v
	}
	return catalog, nil
}
