package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "brandscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BRANDSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags bound
// by the CLI take precedence.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a dedicated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load reads the first config file found on the search paths, applies
// environment overrides and validates the result. A missing file is not an
// error.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	return l.read(false, true)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}
	l.v.SetConfigFile(configFile)
	return l.read(true, true)
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	return l.read(false, false)
}

func (l *Loader) read(required, validate bool) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if required || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("backends.detector", d.Backends.Detector)
	l.v.SetDefault("backends.ocr", d.Backends.OCR)
	l.v.SetDefault("backends.use_small_model", d.Backends.UseSmallModel)
	l.v.SetDefault("backends.model_path", d.Backends.ModelPath)
	l.v.SetDefault("backends.labels_path", d.Backends.LabelsPath)
	l.v.SetDefault("backends.input_size", d.Backends.InputSize)
	l.v.SetDefault("backends.num_threads", d.Backends.NumThreads)
	l.v.SetDefault("backends.tessdata_prefix", d.Backends.TessdataPrefix)
	l.v.SetDefault("backends.languages", d.Backends.Languages)
	l.v.SetDefault("backends.credentials_file", d.Backends.CredentialsFile)
	l.v.SetDefault("backends.endpoint", d.Backends.Endpoint)
	l.v.SetDefault("backends.max_objects", d.Backends.MaxObjects)

	l.v.SetDefault("detection.confidence_floor", d.Detection.ConfidenceFloor)
	l.v.SetDefault("detection.iou_threshold", d.Detection.IoUThreshold)
	l.v.SetDefault("detection.min_relative_area", d.Detection.MinRelativeArea)
	l.v.SetDefault("detection.max_relative_area", d.Detection.MaxRelativeArea)
	l.v.SetDefault("detection.classes", d.Detection.Classes)

	l.v.SetDefault("refiner.hypotheses", d.Refiner.Hypotheses)

	l.v.SetDefault("ocr.variants", d.OCR.Variants)
	l.v.SetDefault("ocr.timeout", d.OCR.Timeout.String())
	l.v.SetDefault("ocr.min_usable_chars", d.OCR.MinUsableChars)
	l.v.SetDefault("ocr.full_score_chars", d.OCR.FullScoreChars)
	l.v.SetDefault("ocr.min_side", d.OCR.MinSide)

	l.v.SetDefault("matching.dictionary_path", d.Matching.DictionaryPath)
	l.v.SetDefault("matching.min_pattern_length", d.Matching.MinPatternLength)
	l.v.SetDefault("matching.use_confusables", d.Matching.UseConfusables)
	l.v.SetDefault("matching.enable_fuzzy", d.Matching.EnableFuzzy)
	l.v.SetDefault("matching.fuzzy_threshold", d.Matching.FuzzyThreshold)
	l.v.SetDefault("matching.fuzzy_min_word_length", d.Matching.FuzzyMinWordLength)
	l.v.SetDefault("matching.fuzzy_score_scale", d.Matching.FuzzyScoreScale)
	l.v.SetDefault("matching.joined_score_scale", d.Matching.JoinedScoreScale)

	l.v.SetDefault("scoring.detector_weight", d.Scoring.DetectorWeight)
	l.v.SetDefault("scoring.coverage_weight", d.Scoring.CoverageWeight)
	l.v.SetDefault("scoring.brand_weight", d.Scoring.BrandWeight)
	l.v.SetDefault("scoring.min_token_length", d.Scoring.MinTokenLength)

	l.v.SetDefault("dedupe.iou_threshold", d.Dedupe.IoUThreshold)
	l.v.SetDefault("dedupe.centroid_distance", d.Dedupe.CentroidDistance)

	l.v.SetDefault("parallel.region_workers", d.Parallel.RegionWorkers)
	l.v.SetDefault("parallel.image_workers", d.Parallel.ImageWorkers)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.overlay_dir", d.Output.OverlayDir)
	l.v.SetDefault("output.metrics_file", d.Output.MetricsFile)

	l.v.SetDefault("gpu.enabled", d.GPU.Enabled)
	l.v.SetDefault("gpu.device", d.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", d.GPU.MemoryLimit)
}

// GenerateDefaultConfigFile writes the default configuration as YAML.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	return append(paths, "/etc/"+ConfigFileName)
}
