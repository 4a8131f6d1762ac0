// Package config loads brandscan settings from files, environment variables
// and flags, and converts them to component configurations.
package config

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/brandscan/internal/brand"
	"github.com/MeKo-Tech/brandscan/internal/dedupe"
	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/models"
	"github.com/MeKo-Tech/brandscan/internal/ocr"
	"github.com/MeKo-Tech/brandscan/internal/onnx"
	"github.com/MeKo-Tech/brandscan/internal/pipeline"
	"github.com/MeKo-Tech/brandscan/internal/refiner"
	"github.com/MeKo-Tech/brandscan/internal/scoring"
	"github.com/MeKo-Tech/brandscan/internal/vision"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	ens := ocr.DefaultEnsembleConfig()
	match := brand.DefaultMatcherConfig()
	sc := scoring.DefaultConfig()
	dd := dedupe.DefaultConfig()
	yolo := detector.DefaultYOLOConfig()

	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Backends: BackendsConfig{
			Detector:   pipeline.BackendYOLO,
			OCR:        pipeline.BackendTesseract,
			InputSize:  yolo.InputSize,
			Languages:  ocr.DefaultTesseractConfig().Languages,
			MaxObjects: vision.DefaultConfig().MaxObjects,
		},
		Detection: DetectionConfig{
			ConfidenceFloor: det.ConfidenceFloor,
			IoUThreshold:    det.IoUThreshold,
			MinRelativeArea: det.MinRelativeArea,
			MaxRelativeArea: det.MaxRelativeArea,
		},
		Refiner: RefinerConfig{Hypotheses: refiner.DefaultConfig().Hypotheses},
		OCR: OCRConfig{
			Variants:       ens.Preprocess.Variants,
			Timeout:        ens.Timeout,
			MinUsableChars: ens.MinUsableChars,
			FullScoreChars: ens.FullScoreChars,
			MinSide:        ens.Preprocess.MinSide,
		},
		Matching: MatchingConfig{
			MinPatternLength:   brand.DefaultMinPatternLength,
			UseConfusables:     match.UseConfusables,
			EnableFuzzy:        match.EnableFuzzy,
			FuzzyThreshold:     match.FuzzyThreshold,
			FuzzyMinWordLength: match.FuzzyMinWordLength,
			FuzzyScoreScale:    match.FuzzyScoreScale,
			JoinedScoreScale:   match.JoinedScoreScale,
		},
		Scoring: ScoringConfig{
			DetectorWeight: sc.Weights.Detector,
			CoverageWeight: sc.Weights.Coverage,
			BrandWeight:    sc.Weights.Brand,
			MinTokenLength: sc.MinTokenLength,
		},
		Dedupe: DedupeConfig{
			IoUThreshold:     dd.IoUThreshold,
			CentroidDistance: dd.CentroidDistance,
		},
		Parallel: ParallelConfig{
			RegionWorkers: runtime.NumCPU(),
			ImageWorkers:  max(runtime.NumCPU()/2, 1),
		},
		Output: OutputConfig{Format: "json"},
		GPU:    GPUConfig{MemoryLimit: "auto"},
	}
}

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"json", "text", "csv"}
	validDetectors = []string{pipeline.BackendYOLO, pipeline.BackendVision, pipeline.BackendNone}
	validOCR       = []string{pipeline.BackendTesseract, pipeline.BackendVision, pipeline.BackendNone}
)

// Validate validates the configuration and returns the first problem found.
// Component-level checks run again when the pipeline is built.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if !slices.Contains(validDetectors, c.Backends.Detector) {
		return fmt.Errorf("invalid detector backend: %s (must be one of: %s)", c.Backends.Detector, strings.Join(validDetectors, ", "))
	}
	if !slices.Contains(validOCR, c.Backends.OCR) {
		return fmt.Errorf("invalid ocr backend: %s (must be one of: %s)", c.Backends.OCR, strings.Join(validOCR, ", "))
	}

	for name, v := range map[string]float64{
		"detection.confidence_floor":  c.Detection.ConfidenceFloor,
		"detection.iou_threshold":     c.Detection.IoUThreshold,
		"detection.min_relative_area": c.Detection.MinRelativeArea,
		"detection.max_relative_area": c.Detection.MaxRelativeArea,
		"matching.fuzzy_threshold":    c.Matching.FuzzyThreshold,
		"dedupe.iou_threshold":        c.Dedupe.IoUThreshold,
	} {
		if err := validateThreshold(v, name); err != nil {
			return err
		}
	}

	if s := c.Matching.FuzzyScoreScale; s <= 0 || s >= 1 {
		return fmt.Errorf("invalid matching.fuzzy_score_scale: %f (must be in (0,1))", s)
	}
	if s := c.Matching.JoinedScoreScale; s <= 0 || s >= 1 {
		return fmt.Errorf("invalid matching.joined_score_scale: %f (must be in (0,1))", s)
	}
	if len(c.Refiner.Hypotheses) > 0 {
		if err := (refiner.Config{Hypotheses: c.Refiner.Hypotheses}).Validate(); err != nil {
			return fmt.Errorf("invalid refiner config: %w", err)
		}
	}

	if c.Parallel.RegionWorkers <= 0 {
		return fmt.Errorf("invalid region workers: %d (must be positive)", c.Parallel.RegionWorkers)
	}
	if c.Parallel.ImageWorkers <= 0 {
		return fmt.Errorf("invalid image workers: %d (must be positive)", c.Parallel.ImageWorkers)
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("invalid ocr timeout: %v (must be positive)", c.OCR.Timeout)
	}
	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()

	cfg.Detector = detector.Config{
		ConfidenceFloor: c.Detection.ConfidenceFloor,
		IoUThreshold:    c.Detection.IoUThreshold,
		MinRelativeArea: c.Detection.MinRelativeArea,
		MaxRelativeArea: c.Detection.MaxRelativeArea,
		Classes:         c.Detection.Classes,
	}

	if len(c.Refiner.Hypotheses) > 0 {
		cfg.Refiner.Hypotheses = c.Refiner.Hypotheses
	}

	if len(c.OCR.Variants) > 0 {
		cfg.OCR.Preprocess.Variants = c.OCR.Variants
	}
	if c.OCR.MinSide > 0 {
		cfg.OCR.Preprocess.MinSide = c.OCR.MinSide
	}
	cfg.OCR.Timeout = c.OCR.Timeout
	cfg.OCR.MinUsableChars = c.OCR.MinUsableChars
	cfg.OCR.FullScoreChars = c.OCR.FullScoreChars
	if langs := c.Backends.Languages; len(langs) > 0 {
		for i := range cfg.OCR.Pages {
			cfg.OCR.Pages[i].Languages = langs
		}
	}

	cfg.DictionaryPath = c.Matching.DictionaryPath
	cfg.MinPatternLength = c.Matching.MinPatternLength
	cfg.Matcher.UseConfusables = c.Matching.UseConfusables
	cfg.Matcher.EnableFuzzy = c.Matching.EnableFuzzy
	cfg.Matcher.FuzzyThreshold = c.Matching.FuzzyThreshold
	cfg.Matcher.FuzzyMinWordLength = c.Matching.FuzzyMinWordLength
	cfg.Matcher.FuzzyScoreScale = c.Matching.FuzzyScoreScale
	cfg.Matcher.JoinedScoreScale = c.Matching.JoinedScoreScale
	cfg.Matcher.MinTokenLength = c.Scoring.MinTokenLength

	cfg.Scoring = scoring.Config{
		Weights: scoring.Weights{
			Detector: c.Scoring.DetectorWeight,
			Coverage: c.Scoring.CoverageWeight,
			Brand:    c.Scoring.BrandWeight,
		},
		MinTokenLength: c.Scoring.MinTokenLength,
	}
	cfg.Dedupe = dedupe.Config{
		IoUThreshold:     c.Dedupe.IoUThreshold,
		CentroidDistance: c.Dedupe.CentroidDistance,
	}

	cfg.Workers = c.Parallel.RegionWorkers
	cfg.Parallel.MaxWorkers = c.Parallel.ImageWorkers
	return cfg
}

// ToBackendConfig converts the config to the backend selection.
func (c *Config) ToBackendConfig() pipeline.BackendConfig {
	cfg := pipeline.DefaultBackendConfig()
	cfg.Detector = c.Backends.Detector
	cfg.OCR = c.Backends.OCR
	cfg.ModelsDir = c.ModelsDir
	cfg.UseSmall = c.Backends.UseSmallModel

	cfg.YOLO.ModelPath = c.Backends.ModelPath
	cfg.YOLO.LabelsPath = c.Backends.LabelsPath
	if c.Backends.InputSize > 0 {
		cfg.YOLO.InputSize = c.Backends.InputSize
	}
	cfg.YOLO.IoUThreshold = c.Detection.IoUThreshold
	cfg.YOLO.NumThreads = c.Backends.NumThreads
	cfg.YOLO.GPU = c.toGPUConfig()

	cfg.Tesseract.TessdataPrefix = c.Backends.TessdataPrefix
	if len(c.Backends.Languages) > 0 {
		cfg.Tesseract.Languages = c.Backends.Languages
	}

	cfg.Vision = vision.Config{
		CredentialsFile: c.Backends.CredentialsFile,
		Endpoint:        c.Backends.Endpoint,
		MaxObjects:      c.Backends.MaxObjects,
	}
	return cfg
}

func (c *Config) toGPUConfig() onnx.GPUConfig {
	cfg := onnx.DefaultGPUConfig()
	cfg.UseGPU = c.GPU.Enabled
	cfg.DeviceID = c.GPU.Device
	if limit, err := parseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.GPUMemLimit = limit
	}
	return cfg
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses a GPU memory limit such as "1GB" or "512MB".
// Empty and "auto" mean no limit and return 0.
func parseMemoryLimit(limit string) (uint64, error) {
	limit = strings.ToUpper(strings.TrimSpace(limit))
	if limit == "" || limit == "AUTO" {
		return 0, nil
	}

	units := []struct {
		suffix string
		scale  float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(limit, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(limit, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.scale), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB (got %s)", limit)
}
