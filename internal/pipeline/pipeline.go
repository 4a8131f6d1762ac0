// Package pipeline sequences detection, label refinement, OCR, brand
// matching, scoring and deduplication into one identify call.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/MeKo-Tech/brandscan/internal/brand"
	"github.com/MeKo-Tech/brandscan/internal/dedupe"
	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/ocr"
	"github.com/MeKo-Tech/brandscan/internal/refiner"
	"github.com/MeKo-Tech/brandscan/internal/scoring"
)

// Config holds configuration for the identification pipeline and its components.
type Config struct {
	Detector         detector.Config
	Refiner          refiner.Config
	OCR              ocr.EnsembleConfig
	Matcher          brand.MatcherConfig
	DictionaryPath   string // empty uses the embedded dictionary
	MinPatternLength int
	Scoring          scoring.Config
	Dedupe           dedupe.Config
	Workers          int // region workers per image (0 = runtime.NumCPU())

	// OnState, when set, is called on every state transition.
	OnState func(State)

	Parallel ParallelConfig // multi-image processing
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Detector:         detector.DefaultConfig(),
		Refiner:          refiner.DefaultConfig(),
		OCR:              ocr.DefaultEnsembleConfig(),
		Matcher:          brand.DefaultMatcherConfig(),
		MinPatternLength: brand.DefaultMinPatternLength,
		Scoring:          scoring.DefaultConfig(),
		Dedupe:           dedupe.DefaultConfig(),
		Workers:          runtime.NumCPU(),
		Parallel:         DefaultParallelConfig(),
	}
}

// Pipeline identifies products in images. It is safe for concurrent use;
// runs share only read-only state.
type Pipeline struct {
	cfg      Config
	detector *detector.RegionDetector
	refiner  *refiner.Refiner
	ensemble *ocr.Ensemble
	matcher  *brand.Matcher
	scorer   *scoring.Scorer
	dedupe   *dedupe.Deduplicator
	metrics  *Metrics
	closers  []io.Closer
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	objects detector.ObjectDetector
	engine  ocr.Engine
	dict    *brand.Dictionary
	metrics *Metrics
	closers []io.Closer
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithObjectDetector sets the detection capability. Nil means every image
// degrades to the whole-image candidate.
func (b *Builder) WithObjectDetector(d detector.ObjectDetector) *Builder {
	b.objects = d
	return b
}

// WithOCREngine sets the OCR capability. Nil means no text is ever read.
func (b *Builder) WithOCREngine(e ocr.Engine) *Builder {
	b.engine = e
	return b
}

// WithDictionary overrides the brand dictionary.
func (b *Builder) WithDictionary(d *brand.Dictionary) *Builder {
	b.dict = d
	return b
}

// WithDictionaryPath loads the brand dictionary from a YAML file at Build.
func (b *Builder) WithDictionaryPath(path string) *Builder {
	if path != "" {
		b.cfg.DictionaryPath = path
	}
	return b
}

// WithMetrics attaches a metrics sink.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithWorkers sets the region worker count (if >0).
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.Workers = n
	}
	return b
}

// WithOnState installs a state transition observer.
func (b *Builder) WithOnState(fn func(State)) *Builder {
	b.cfg.OnState = fn
	return b
}

// WithCloser registers a resource released by Pipeline.Close.
func (b *Builder) WithCloser(c io.Closer) *Builder {
	if c != nil {
		b.closers = append(b.closers, c)
	}
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	cfg := b.cfg
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	dict := b.dict
	if dict == nil {
		var err error
		dict, err = brand.LoadDictionary(cfg.DictionaryPath, cfg.MinPatternLength)
		if err != nil {
			return nil, fmt.Errorf("failed to load brand dictionary: %w", err)
		}
	}

	regions, err := detector.New(b.objects, cfg.Detector)
	if err != nil {
		return nil, err
	}
	ref, err := refiner.New(cfg.Refiner)
	if err != nil {
		return nil, fmt.Errorf("invalid refiner config: %w", err)
	}
	var recorder ocr.Recorder
	if b.metrics != nil {
		recorder = b.metrics
	}
	ens, err := ocr.NewEnsemble(b.engine, cfg.OCR, recorder)
	if err != nil {
		return nil, fmt.Errorf("invalid ocr config: %w", err)
	}
	matcher, err := brand.NewMatcher(dict, cfg.Matcher)
	if err != nil {
		return nil, fmt.Errorf("invalid matcher config: %w", err)
	}
	scorer, err := scoring.New(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	dd, err := dedupe.New(cfg.Dedupe)
	if err != nil {
		return nil, err
	}

	slog.Debug("Pipeline initialized",
		"object_detector", backendName(b.objects),
		"ocr_engine", engineName(b.engine),
		"brands", dict.Len(),
		"hypotheses", ref.Names(),
		"workers", cfg.Workers)

	return &Pipeline{
		cfg:      cfg,
		detector: regions,
		refiner:  ref,
		ensemble: ens,
		matcher:  matcher,
		scorer:   scorer,
		dedupe:   dd,
		metrics:  b.metrics,
		closers:  b.closers,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Matcher exposes the brand matcher.
func (p *Pipeline) Matcher() *brand.Matcher { return p.matcher }

// Close releases backend resources registered with the builder.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func backendName(d detector.ObjectDetector) string {
	if d == nil {
		return "none"
	}
	return d.Name()
}

func engineName(e ocr.Engine) string {
	if e == nil {
		return "none"
	}
	return e.Name()
}
