package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/brandscan/internal/brand"
	"github.com/MeKo-Tech/brandscan/internal/preprocess"
)

// Invocation outcomes reported to a Recorder.
const (
	OutcomeText    = "text"
	OutcomeNoise   = "noise"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Limits on the cross-product size.
const (
	MaxVariants    = 4
	MaxPageConfigs = 5
)

// Recorder observes individual OCR invocations.
type Recorder interface {
	ObserveOCR(outcome string, elapsed time.Duration)
}

// TextCandidate is one accepted string from one (variant, config) pair.
type TextCandidate struct {
	Variant     string  `json:"variant"`
	Config      string  `json:"config"`
	Raw         string  `json:"raw"`
	Normalized  string  `json:"normalized"`
	LengthScore float64 `json:"length_score"`
}

// Extraction is the pooled ensemble output for one region.
type Extraction struct {
	Candidates []TextCandidate
	Attempts   int // pairs invoked
	Productive int // pairs that yielded at least MinUsableChars
	Failures   int // pairs that errored or panicked
	Timeouts   int // pairs that exceeded the budget
}

// Coverage is the share of attempted pairs that produced usable text.
func (e Extraction) Coverage() float64 {
	if e.Attempts == 0 {
		return 0
	}
	return float64(e.Productive) / float64(e.Attempts)
}

// Texts returns the normalized candidate strings in discovery order.
func (e Extraction) Texts() []string {
	out := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		out[i] = c.Normalized
	}
	return out
}

// EnsembleConfig configures the variant x page-config cross-product.
type EnsembleConfig struct {
	Preprocess     preprocess.Config
	Pages          []PageConfig
	Timeout        time.Duration // wall-clock budget per invocation (default: 5s)
	MinUsableChars int           // shorter normalized results are discarded (default: 3)
	FullScoreChars int           // usable length that earns a LengthScore of 1 (default: 16)
}

// DefaultEnsembleConfig uses four variants and five page layouts.
func DefaultEnsembleConfig() EnsembleConfig {
	pp := preprocess.DefaultConfig()
	pp.Variants = []string{preprocess.Grayscale, preprocess.AdaptiveThreshold, preprocess.Otsu, preprocess.Denoise}
	return EnsembleConfig{
		Preprocess:     pp,
		Pages:          DefaultPageConfigs(),
		Timeout:        5 * time.Second,
		MinUsableChars: 3,
		FullScoreChars: 16,
	}
}

// Validate checks the ensemble configuration.
func (c EnsembleConfig) Validate() error {
	if err := c.Preprocess.Validate(); err != nil {
		return err
	}
	if n := len(uniq(c.Preprocess.Variants)); n > MaxVariants {
		return fmt.Errorf("ensemble allows at most %d variants, got %d", MaxVariants, n)
	}
	if len(c.Pages) == 0 || len(c.Pages) > MaxPageConfigs {
		return fmt.Errorf("ensemble needs 1-%d page configs, got %d", MaxPageConfigs, len(c.Pages))
	}
	for _, p := range c.Pages {
		if p.Name == "" {
			return errors.New("page config name cannot be empty")
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("ocr timeout must be positive, got %v", c.Timeout)
	}
	if c.MinUsableChars < 1 {
		return fmt.Errorf("min usable chars must be positive, got %d", c.MinUsableChars)
	}
	if c.FullScoreChars < c.MinUsableChars {
		return fmt.Errorf("full score chars (%d) below min usable chars (%d)", c.FullScoreChars, c.MinUsableChars)
	}
	return nil
}

func uniq(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Ensemble pools OCR output over every variant and page configuration.
type Ensemble struct {
	engine   Engine
	pre      *preprocess.Preprocessor
	cfg      EnsembleConfig
	recorder Recorder
}

// NewEnsemble creates an ensemble. A nil engine is allowed and yields empty
// extractions.
func NewEnsemble(engine Engine, cfg EnsembleConfig, recorder Recorder) (*Ensemble, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pre, err := preprocess.New(cfg.Preprocess)
	if err != nil {
		return nil, err
	}
	return &Ensemble{engine: engine, pre: pre, cfg: cfg, recorder: recorder}, nil
}

// Engine returns the configured backend, possibly nil.
func (e *Ensemble) Engine() Engine { return e.engine }

// Extract runs every (variant, page config) pair over region. It never fails:
// per-pair errors, panics and timeouts are counted and logged. When ctx is
// cancelled the remaining pairs are skipped.
func (e *Ensemble) Extract(ctx context.Context, region image.Image) Extraction {
	var out Extraction
	if e.engine == nil {
		return out
	}
	seen := make(map[string]bool)

	for _, v := range e.pre.Variants(region) {
		for _, page := range e.cfg.Pages {
			if ctx.Err() != nil {
				return out
			}
			out.Attempts++
			start := time.Now()
			raw, err := e.invoke(ctx, v.Image, page)
			elapsed := time.Since(start)

			if err != nil {
				outcome := OutcomeError
				if errors.Is(err, ErrBudgetExceeded) {
					outcome = OutcomeTimeout
					out.Timeouts++
				} else {
					out.Failures++
				}
				e.observe(outcome, elapsed)
				slog.Debug("OCR pair failed",
					"engine", e.engine.Name(), "variant", v.Name, "config", page.Name,
					"outcome", outcome, "error", err)
				continue
			}

			normalized := brand.Normalize(raw)
			usable := brand.UsableLength(normalized)
			if usable < e.cfg.MinUsableChars {
				e.observe(OutcomeNoise, elapsed)
				continue
			}
			out.Productive++
			e.observe(OutcomeText, elapsed)
			if seen[normalized] {
				continue
			}
			seen[normalized] = true
			out.Candidates = append(out.Candidates, TextCandidate{
				Variant:     v.Name,
				Config:      page.Name,
				Raw:         raw,
				Normalized:  normalized,
				LengthScore: min(1, float64(usable)/float64(e.cfg.FullScoreChars)),
			})
		}
	}
	return out
}

type reply struct {
	text string
	err  error
}

// invoke calls the engine under the per-invocation budget. The engine call is
// synchronous, so on timeout its goroutine finishes in the background and
// its result is dropped.
func (e *Ensemble) invoke(ctx context.Context, img image.Image, page PageConfig) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("ocr engine panic: %v", r)}
			}
		}()
		text, err := e.engine.Read(callCtx, img, page)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", ErrBudgetExceeded
	}
}

func (e *Ensemble) observe(outcome string, elapsed time.Duration) {
	if e.recorder != nil {
		e.recorder.ObserveOCR(outcome, elapsed)
	}
}
