//nolint:lll
package config

import (
	"time"

	"github.com/MeKo-Tech/brandscan/internal/refiner"
)

// Config represents the complete configuration for the brandscan application.
// It is loaded from configuration files, environment variables and
// command-line flags, in increasing order of precedence.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Backends  BackendsConfig  `mapstructure:"backends" yaml:"backends" json:"backends"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection" json:"detection"`
	Refiner   RefinerConfig   `mapstructure:"refiner" yaml:"refiner" json:"refiner"`
	OCR       OCRConfig       `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Matching  MatchingConfig  `mapstructure:"matching" yaml:"matching" json:"matching"`
	Scoring   ScoringConfig   `mapstructure:"scoring" yaml:"scoring" json:"scoring"`
	Dedupe    DedupeConfig    `mapstructure:"dedupe" yaml:"dedupe" json:"dedupe"`
	Parallel  ParallelConfig  `mapstructure:"parallel" yaml:"parallel" json:"parallel"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
	GPU       GPUConfig       `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// BackendsConfig selects the detection and OCR capabilities.
type BackendsConfig struct {
	Detector        string   `mapstructure:"detector" yaml:"detector" json:"detector"` // yolo, vision, none
	OCR             string   `mapstructure:"ocr" yaml:"ocr" json:"ocr"`                // tesseract, vision, none
	UseSmallModel   bool     `mapstructure:"use_small_model" yaml:"use_small_model" json:"use_small_model"`
	ModelPath       string   `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LabelsPath      string   `mapstructure:"labels_path" yaml:"labels_path" json:"labels_path"`
	InputSize       int      `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	NumThreads      int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	TessdataPrefix  string   `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
	Languages       []string `mapstructure:"languages" yaml:"languages" json:"languages"`
	CredentialsFile string   `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`
	Endpoint        string   `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	MaxObjects      int      `mapstructure:"max_objects" yaml:"max_objects" json:"max_objects"`
}

// DetectionConfig contains candidate filtering settings.
type DetectionConfig struct {
	ConfidenceFloor float64  `mapstructure:"confidence_floor" yaml:"confidence_floor" json:"confidence_floor"`
	IoUThreshold    float64  `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	MinRelativeArea float64  `mapstructure:"min_relative_area" yaml:"min_relative_area" json:"min_relative_area"`
	MaxRelativeArea float64  `mapstructure:"max_relative_area" yaml:"max_relative_area" json:"max_relative_area"`
	Classes         []string `mapstructure:"classes" yaml:"classes" json:"classes"`
}

// RefinerConfig holds the label hypotheses tried inside every candidate.
// An empty list keeps the built-in set.
type RefinerConfig struct {
	Hypotheses []refiner.Geometry `mapstructure:"hypotheses" yaml:"hypotheses" json:"hypotheses"`
}

// OCRConfig contains ensemble settings.
type OCRConfig struct {
	Variants       []string      `mapstructure:"variants" yaml:"variants" json:"variants"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MinUsableChars int           `mapstructure:"min_usable_chars" yaml:"min_usable_chars" json:"min_usable_chars"`
	FullScoreChars int           `mapstructure:"full_score_chars" yaml:"full_score_chars" json:"full_score_chars"`
	MinSide        int           `mapstructure:"min_side" yaml:"min_side" json:"min_side"`
}

// MatchingConfig contains brand dictionary and matcher settings.
type MatchingConfig struct {
	DictionaryPath     string  `mapstructure:"dictionary_path" yaml:"dictionary_path" json:"dictionary_path"`
	MinPatternLength   int     `mapstructure:"min_pattern_length" yaml:"min_pattern_length" json:"min_pattern_length"`
	UseConfusables     bool    `mapstructure:"use_confusables" yaml:"use_confusables" json:"use_confusables"`
	EnableFuzzy        bool    `mapstructure:"enable_fuzzy" yaml:"enable_fuzzy" json:"enable_fuzzy"`
	FuzzyThreshold     float64 `mapstructure:"fuzzy_threshold" yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
	FuzzyMinWordLength int     `mapstructure:"fuzzy_min_word_length" yaml:"fuzzy_min_word_length" json:"fuzzy_min_word_length"`
	FuzzyScoreScale    float64 `mapstructure:"fuzzy_score_scale" yaml:"fuzzy_score_scale" json:"fuzzy_score_scale"`
	JoinedScoreScale   float64 `mapstructure:"joined_score_scale" yaml:"joined_score_scale" json:"joined_score_scale"`
}

// ScoringConfig contains confidence weights.
type ScoringConfig struct {
	DetectorWeight float64 `mapstructure:"detector_weight" yaml:"detector_weight" json:"detector_weight"`
	CoverageWeight float64 `mapstructure:"coverage_weight" yaml:"coverage_weight" json:"coverage_weight"`
	BrandWeight    float64 `mapstructure:"brand_weight" yaml:"brand_weight" json:"brand_weight"`
	MinTokenLength int     `mapstructure:"min_token_length" yaml:"min_token_length" json:"min_token_length"`
}

// DedupeConfig contains duplicate suppression settings.
type DedupeConfig struct {
	IoUThreshold     float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	CentroidDistance float64 `mapstructure:"centroid_distance" yaml:"centroid_distance" json:"centroid_distance"`
}

// ParallelConfig contains worker pool sizes.
type ParallelConfig struct {
	RegionWorkers int `mapstructure:"region_workers" yaml:"region_workers" json:"region_workers"`
	ImageWorkers  int `mapstructure:"image_workers" yaml:"image_workers" json:"image_workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	File        string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir  string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`
}

// GPUConfig contains GPU acceleration settings for the ONNX detector.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
