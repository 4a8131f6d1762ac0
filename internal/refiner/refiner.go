// Package refiner proposes label sub-rectangles inside a detected product box
// from fixed fractional geometry. It never runs inference.
package refiner

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// Geometry is one named hypothesis expressed as fractions of the crop size.
type Geometry struct {
	Name string  `mapstructure:"name" yaml:"name" json:"name"`
	X1   float64 `mapstructure:"x1" yaml:"x1" json:"x1"`
	Y1   float64 `mapstructure:"y1" yaml:"y1" json:"y1"`
	X2   float64 `mapstructure:"x2" yaml:"x2" json:"x2"`
	Y2   float64 `mapstructure:"y2" yaml:"y2" json:"y2"`
}

// FullCrop names the hypothesis that spans the whole candidate.
const FullCrop = "full-crop"

// Bounds on the size of a hypothesis set.
const (
	MinHypotheses = 4
	MaxHypotheses = 6
)

// Config holds the hypothesis set.
type Config struct {
	Hypotheses []Geometry
}

// DefaultConfig returns label-near-the-top biased hypotheses at several
// scales, ending with the whole crop.
func DefaultConfig() Config {
	return Config{Hypotheses: []Geometry{
		{Name: "centre-upper", X1: 0.15, Y1: 0.05, X2: 0.85, Y2: 0.50},
		{Name: "centre-band", X1: 0.10, Y1: 0.20, X2: 0.90, Y2: 0.70},
		{Name: "upper-loose", X1: 0.05, Y1: 0.00, X2: 0.95, Y2: 0.65},
		{Name: "centre-tight", X1: 0.25, Y1: 0.20, X2: 0.75, Y2: 0.55},
		{Name: FullCrop, X1: 0, Y1: 0, X2: 1, Y2: 1},
	}}
}

// Validate checks that every hypothesis is a well-formed fractional box, that
// the set holds MinHypotheses to MaxHypotheses entries and that one of them
// is FullCrop spanning the whole candidate.
func (c Config) Validate() error {
	if len(c.Hypotheses) == 0 {
		return errors.New("at least one region hypothesis is required")
	}
	if n := len(c.Hypotheses); n < MinHypotheses || n > MaxHypotheses {
		return fmt.Errorf("need %d to %d region hypotheses, got %d", MinHypotheses, MaxHypotheses, n)
	}
	names := make(map[string]bool, len(c.Hypotheses))
	for _, g := range c.Hypotheses {
		if g.Name == "" {
			return errors.New("region hypothesis name cannot be empty")
		}
		if names[g.Name] {
			return fmt.Errorf("duplicate region hypothesis %q", g.Name)
		}
		names[g.Name] = true
		for _, v := range []float64{g.X1, g.Y1, g.X2, g.Y2} {
			if v < 0 || v > 1 {
				return fmt.Errorf("hypothesis %q: fractions must be within [0,1]", g.Name)
			}
		}
		if g.X1 >= g.X2 || g.Y1 >= g.Y2 {
			return fmt.Errorf("hypothesis %q: x1<x2 and y1<y2 required", g.Name)
		}
		if g.Name == FullCrop && (g != Geometry{Name: FullCrop, X2: 1, Y2: 1}) {
			return fmt.Errorf("hypothesis %q must span the whole crop", FullCrop)
		}
	}
	if !names[FullCrop] {
		return fmt.Errorf("hypothesis %q is required as the fallback", FullCrop)
	}
	return nil
}

// Hypothesis is one proposed label region for a candidate.
type Hypothesis struct {
	Name   string
	SubBox image.Rectangle // relative to the candidate crop
	Bounds image.Rectangle // absolute image coordinates
}

// Refiner maps candidate boxes to hypotheses. It holds no mutable state.
type Refiner struct {
	geometry []Geometry
}

// New creates a refiner from cfg.
func New(cfg Config) (*Refiner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := make([]Geometry, len(cfg.Hypotheses))
	copy(g, cfg.Hypotheses)
	return &Refiner{geometry: g}, nil
}

// Propose returns hypotheses for candidate box within an image of the given
// bounds, in configuration order. The box is clipped to bounds first and
// hypotheses that collapse to zero area are skipped.
func (r *Refiner) Propose(bounds, box image.Rectangle) []Hypothesis {
	box = box.Intersect(bounds)
	if box.Empty() {
		return nil
	}
	w, h := box.Dx(), box.Dy()
	out := make([]Hypothesis, 0, len(r.geometry))
	for _, g := range r.geometry {
		sub := utils.FractionRect(w, h, g.X1, g.Y1, g.X2, g.Y2)
		if sub.Empty() {
			continue
		}
		out = append(out, Hypothesis{
			Name:   g.Name,
			SubBox: sub,
			Bounds: sub.Add(box.Min),
		})
	}
	return out
}

// Names returns the configured hypothesis names in order.
func (r *Refiner) Names() []string {
	names := make([]string, len(r.geometry))
	for i, g := range r.geometry {
		names[i] = g.Name
	}
	return names
}
