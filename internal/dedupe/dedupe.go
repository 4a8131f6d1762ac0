// Package dedupe removes products that describe the same physical object.
package dedupe

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/MeKo-Tech/brandscan/internal/scoring"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// Config holds the spatial thresholds.
type Config struct {
	IoUThreshold     float64 // reject when IoU with an accepted product reaches this (default: 0.3)
	CentroidDistance float64 // reject when centroids are closer than this many pixels; <= 0 disables (default: 20)
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{IoUThreshold: 0.3, CentroidDistance: 20}
}

// Validate checks thresholds.
func (c Config) Validate() error {
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("dedupe IoU threshold must be in (0,1], got %f", c.IoUThreshold)
	}
	return nil
}

// Deduplicator performs greedy spatial suppression.
type Deduplicator struct {
	cfg Config
}

// New creates a deduplicator.
func New(cfg Config) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Deduplicator{cfg: cfg}, nil
}

// Dedupe returns the accepted products ordered by confidence descending, then
// box area descending, then top-left position. Decisions are final.
func (d *Deduplicator) Dedupe(products []scoring.Product) []scoring.Product {
	if len(products) == 0 {
		return nil
	}
	ordered := make([]scoring.Product, len(products))
	copy(ordered, products)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if aa, ba := utils.RectArea(a.Box), utils.RectArea(b.Box); aa != ba {
			return aa > ba
		}
		if a.Box.Min.X != b.Box.Min.X {
			return a.Box.Min.X < b.Box.Min.X
		}
		return a.Box.Min.Y < b.Box.Min.Y
	})

	kept := make([]scoring.Product, 0, len(ordered))
	for _, p := range ordered {
		if dup, reason := d.duplicates(p, kept); dup {
			slog.Debug("Dropping duplicate product", "brand", p.Brand, "confidence", p.Confidence, "reason", reason)
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func (d *Deduplicator) duplicates(p scoring.Product, kept []scoring.Product) (bool, string) {
	for _, k := range kept {
		if utils.RectIoU(p.Box, k.Box) >= d.cfg.IoUThreshold {
			return true, "iou"
		}
		if d.cfg.CentroidDistance > 0 && utils.CentroidDistance(p.Box, k.Box) < d.cfg.CentroidDistance {
			return true, "centroid"
		}
	}
	return false, ""
}
