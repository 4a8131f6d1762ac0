// Package detector turns object detector output into product candidates.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// ErrModelUnavailable reports that no detection backend can be invoked.
var ErrModelUnavailable = errors.New("object detector unavailable")

// UnknownClass labels the whole-image fallback candidate.
const UnknownClass = "unknown"

// Detection is one raw box reported by a detection backend, in image pixels.
type Detection struct {
	Box   utils.Box
	Label string
	Score float64
}

// ObjectDetector is a pluggable detection capability.
type ObjectDetector interface {
	Name() string
	Detect(ctx context.Context, img image.Image, confidenceFloor float64) ([]Detection, error)
}

// Candidate is a region believed to contain one product.
type Candidate struct {
	Box          image.Rectangle `json:"bbox"`
	Class        string          `json:"generic_class"`
	Confidence   float64         `json:"detector_confidence"`
	RelativeArea float64         `json:"relative_area"`
	Fallback     bool            `json:"fallback"`
}

// RegionDetector wraps a backend and filters its output. It never fails:
// backend errors degrade to a single whole-image candidate.
type RegionDetector struct {
	backend ObjectDetector
	cfg     Config
	classes map[string]bool
}

// New creates a region detector. A nil backend always yields the fallback.
func New(backend ObjectDetector, cfg Config) (*RegionDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	d := &RegionDetector{backend: backend, cfg: cfg}
	if len(cfg.Classes) > 0 {
		d.classes = make(map[string]bool, len(cfg.Classes))
		for _, c := range cfg.Classes {
			d.classes[strings.ToLower(strings.TrimSpace(c))] = true
		}
	}
	return d, nil
}

// Config returns the detector configuration.
func (d *RegionDetector) Config() Config { return d.cfg }

// Backend returns the wrapped capability, possibly nil.
func (d *RegionDetector) Backend() ObjectDetector { return d.backend }

// Detect returns filtered candidates sorted by confidence. The second return
// value reports whether the whole-image fallback was used.
func (d *RegionDetector) Detect(ctx context.Context, img image.Image) ([]Candidate, bool) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, false
	}

	raw, err := d.invoke(ctx, img)
	if err != nil {
		slog.Warn("Object detector failed, using whole image", "error", err)
		return []Candidate{WholeImage(bounds)}, true
	}

	total := float64(bounds.Dx() * bounds.Dy())
	out := make([]Candidate, 0, len(raw))
	for _, det := range raw {
		if det.Score < d.cfg.ConfidenceFloor {
			continue
		}
		rect := det.Box.ToRect(bounds)
		if rect.Empty() {
			continue
		}
		rel := float64(utils.RectArea(rect)) / total
		if rel < d.cfg.MinRelativeArea || rel > d.cfg.MaxRelativeArea {
			slog.Debug("Dropping candidate by area", "label", det.Label, "relative_area", rel)
			continue
		}
		label := strings.ToLower(strings.TrimSpace(det.Label))
		if label == "" {
			label = UnknownClass
		}
		if d.classes != nil && !d.classes[label] {
			continue
		}
		out = append(out, Candidate{
			Box:          rect,
			Class:        label,
			Confidence:   clamp01(det.Score),
			RelativeArea: rel,
		})
	}

	sortCandidates(out)
	slog.Debug("Detection complete", "raw", len(raw), "kept", len(out))
	return out, false
}

// invoke calls the backend, converting panics into errors.
func (d *RegionDetector) invoke(ctx context.Context, img image.Image) (dets []Detection, err error) {
	if d.backend == nil {
		return nil, ErrModelUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: backend %s panicked: %v", ErrModelUnavailable, d.backend.Name(), r)
		}
	}()
	dets, err = d.backend.Detect(ctx, img, d.cfg.ConfidenceFloor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.backend.Name(), err)
	}
	return dets, nil
}

// WholeImage is the fallback candidate spanning the entire image.
func WholeImage(bounds image.Rectangle) Candidate {
	return Candidate{
		Box:          bounds,
		Class:        UnknownClass,
		Confidence:   1.0,
		RelativeArea: 1.0,
		Fallback:     true,
	}
}

func sortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Confidence != c[j].Confidence {
			return c[i].Confidence > c[j].Confidence
		}
		if c[i].Box.Min.Y != c[j].Box.Min.Y {
			return c[i].Box.Min.Y < c[j].Box.Min.Y
		}
		return c[i].Box.Min.X < c[j].Box.Min.X
	})
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
