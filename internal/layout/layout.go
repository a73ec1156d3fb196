// Package layout places the interactive nodes of a trail making test on a
// canvas, either by rejection sampling or from a fixed designer template.
package layout

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ErrLayoutExhausted is returned when the sampler ran out of attempts
// before placing every label.
var ErrLayoutExhausted = errors.New("layout: attempt budget exhausted")

// Point is a position in canvas coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is an interactive circle on the canvas.
type Node struct {
	ID    int     `json:"id"`
	Label Label   `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Canvas is the drawable area in pixels.
type Canvas struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Config controls random placement.
type Config struct {
	Canvas Canvas
	Radius float64
	// Separation is the minimum centre distance as a multiple of Radius.
	Separation  float64
	MaxAttempts int
}

// DistanceSquared between two points.
func DistanceSquared(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// Distance from p to q.
func (p Point) Distance(q Point) float64 {
	return math.Sqrt(DistanceSquared(p, q))
}

// Center of the node.
func (n Node) Center() Point { return Point{X: n.X, Y: n.Y} }

// RandomPoints draws up to count points that are pairwise further apart than
// Separation*Radius. It stops after MaxAttempts draws, so it may return
// fewer points than requested.
func RandomPoints(rng *rand.Rand, count int, cfg Config) []Point {
	points := make([]Point, 0, count)
	minDist := cfg.Separation * cfg.Radius
	minDistSq := minDist * minDist
	spanX := cfg.Canvas.Width - cfg.Radius*2
	spanY := cfg.Canvas.Height - cfg.Radius*2
	if spanX < 0 || spanY < 0 {
		return points
	}

	for attempts := 0; len(points) < count && attempts < cfg.MaxAttempts; attempts++ {
		candidate := Point{
			X: rng.Float64()*spanX + cfg.Radius,
			Y: rng.Float64()*spanY + cfg.Radius,
		}
		farEnough := true
		for _, p := range points {
			if DistanceSquared(p, candidate) <= minDistSq {
				farEnough = false
				break
			}
		}
		if farEnough {
			points = append(points, candidate)
		}
	}
	return points
}

// Random places labels on randomly sampled coordinates. The labels are
// shuffled onto the coordinates and the resulting nodes are sorted back into
// label order, so positions are independent of the sequence. When the sampler
// comes up short the placed nodes are returned with ErrLayoutExhausted.
func Random(rng *rand.Rand, labels []Label, cfg Config) ([]Node, error) {
	points := RandomPoints(rng, len(labels), cfg)

	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	nodes := make([]Node, 0, len(points))
	for i, p := range points {
		idx := order[i]
		nodes = append(nodes, Node{ID: idx, Label: labels[idx], X: p.X, Y: p.Y})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	if len(nodes) < len(labels) {
		return nodes, fmt.Errorf("placed %d of %d nodes: %w", len(nodes), len(labels), ErrLayoutExhausted)
	}
	return nodes, nil
}

// Fixed zips a label template with designer coordinates.
func Fixed(labels []Label, points []Point) ([]Node, error) {
	if len(labels) != len(points) {
		return nil, fmt.Errorf("fixed layout has %d points for %d labels", len(points), len(labels))
	}
	nodes := make([]Node, len(labels))
	for i, l := range labels {
		nodes[i] = Node{ID: i, Label: l, X: points[i].X, Y: points[i].Y}
	}
	return nodes, nil
}

// HitTest returns the first node whose circle contains p.
func HitTest(nodes []Node, p Point, radius float64) (Node, bool) {
	r2 := radius * radius
	for _, n := range nodes {
		if DistanceSquared(Point{X: n.X, Y: n.Y}, p) <= r2 {
			return n, true
		}
	}
	return Node{}, false
}
