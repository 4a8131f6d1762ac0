// Package scoring combines detector, OCR and brand evidence into one
// confidence per detected object.
package scoring

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/brandscan/internal/brand"
	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/ocr"
	"github.com/MeKo-Tech/brandscan/internal/refiner"
)

// Weights controls how evidence is combined. They are normalized by their sum.
type Weights struct {
	Detector float64 `mapstructure:"detector" yaml:"detector" json:"detector"`
	Coverage float64 `mapstructure:"coverage" yaml:"coverage" json:"coverage"`
	Brand    float64 `mapstructure:"brand" yaml:"brand" json:"brand"`
}

// Config configures the scorer.
type Config struct {
	Weights        Weights
	MinTokenLength int // shortest token used for an unidentified label (default: 3)
}

// DefaultConfig weights brand evidence most heavily.
func DefaultConfig() Config {
	return Config{
		Weights:        Weights{Detector: 0.2, Coverage: 0.2, Brand: 0.6},
		MinTokenLength: 3,
	}
}

// Validate checks the weights.
func (c Config) Validate() error {
	w := c.Weights
	if w.Detector < 0 || w.Coverage < 0 || w.Brand < 0 {
		return errors.New("scoring weights must be non-negative")
	}
	if w.Detector+w.Coverage+w.Brand <= 0 {
		return errors.New("scoring weights must not all be zero")
	}
	if w.Brand < w.Detector || w.Brand < w.Coverage {
		return fmt.Errorf("brand weight %.2f must be the largest", w.Brand)
	}
	if c.MinTokenLength < 1 {
		return fmt.Errorf("min token length must be positive, got %d", c.MinTokenLength)
	}
	return nil
}

// HypothesisResult is the evidence gathered for one region hypothesis.
type HypothesisResult struct {
	Hypothesis refiner.Hypothesis
	Extraction ocr.Extraction
	Match      *brand.Match
}

// Evidence records what produced a product.
type Evidence struct {
	GenericClass       string              `json:"generic_class"`
	DetectorConfidence float64             `json:"detector_confidence"`
	Hypothesis         string              `json:"hypothesis,omitempty"`
	HypothesisBox      image.Rectangle     `json:"-"`
	Coverage           float64             `json:"ocr_coverage"`
	Texts              []string            `json:"texts,omitempty"`
	Candidates         []ocr.TextCandidate `json:"-"`
	Match              *brand.Match        `json:"-"`
	Fallback           bool                `json:"fallback"`
}

// Product is an identified (or explicitly unidentified) object.
type Product struct {
	Box        image.Rectangle
	Brand      string
	Identified bool
	Class      string
	Confidence float64
	Evidence   Evidence
}

// Scorer is stateless and safe for concurrent use.
type Scorer struct {
	cfg   Config
	total float64
}

// New creates a scorer.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := cfg.Weights
	return &Scorer{cfg: cfg, total: w.Detector + w.Coverage + w.Brand}, nil
}

// Combine returns the weighted confidence for one hypothesis, in [0,1].
func (s *Scorer) Combine(detectorConfidence, coverage, matchScore float64) float64 {
	w := s.cfg.Weights
	v := w.Detector*clamp01(detectorConfidence) + w.Coverage*clamp01(coverage) + w.Brand*clamp01(matchScore)
	return v / s.total
}

// Score picks the best hypothesis for cand and builds its product. Ties keep
// the earlier hypothesis. A candidate without results still yields a product.
func (s *Scorer) Score(cand detector.Candidate, results []HypothesisResult) Product {
	best := -1
	bestScore := 0.0
	for i, r := range results {
		v := s.Combine(cand.Confidence, r.Extraction.Coverage(), matchScore(r.Match))
		if best < 0 || v > bestScore {
			best, bestScore = i, v
		}
	}

	p := Product{
		Box:   cand.Box,
		Class: cand.Class,
		Evidence: Evidence{
			GenericClass:       cand.Class,
			DetectorConfidence: cand.Confidence,
			Fallback:           cand.Fallback,
		},
	}
	if best < 0 {
		p.Confidence = s.Combine(cand.Confidence, 0, 0)
		p.Brand = brand.UnidentifiedLabel(nil, cand.Class, s.cfg.MinTokenLength)
		return p
	}

	win := results[best]
	p.Confidence = bestScore
	p.Evidence.Hypothesis = win.Hypothesis.Name
	p.Evidence.HypothesisBox = win.Hypothesis.Bounds
	p.Evidence.Coverage = win.Extraction.Coverage()
	p.Evidence.Texts = win.Extraction.Texts()
	p.Evidence.Candidates = win.Extraction.Candidates
	p.Evidence.Match = win.Match

	if win.Match != nil {
		p.Brand = win.Match.Brand
		p.Identified = true
		return p
	}

	texts := p.Evidence.Texts
	if len(texts) == 0 {
		for _, r := range results {
			texts = append(texts, r.Extraction.Texts()...)
		}
	}
	p.Brand = brand.UnidentifiedLabel(texts, cand.Class, s.cfg.MinTokenLength)
	return p
}

func matchScore(m *brand.Match) float64 {
	if m == nil {
		return 0
	}
	return m.Score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
