package config

import (
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/brandscan/internal/pipeline"
	"github.com/MeKo-Tech/brandscan/internal/refiner"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error: %v", err)
	}
	if cfg.Backends.Detector != pipeline.BackendYOLO {
		t.Errorf("Expected default detector %q, got %q", pipeline.BackendYOLO, cfg.Backends.Detector)
	}
	if cfg.OCR.Timeout != 5*time.Second {
		t.Errorf("Expected default OCR timeout 5s, got %v", cfg.OCR.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"detector", func(c *Config) { c.Backends.Detector = "radar" }, "invalid detector backend"},
		{"ocr", func(c *Config) { c.Backends.OCR = "eyes" }, "invalid ocr backend"},
		{"floor", func(c *Config) { c.Detection.ConfidenceFloor = 1.5 }, "detection.confidence_floor"},
		{"dedupe", func(c *Config) { c.Dedupe.IoUThreshold = -0.1 }, "dedupe.iou_threshold"},
		{"region workers", func(c *Config) { c.Parallel.RegionWorkers = 0 }, "region workers"},
		{"image workers", func(c *Config) { c.Parallel.ImageWorkers = -1 }, "image workers"},
		{"timeout", func(c *Config) { c.OCR.Timeout = 0 }, "ocr timeout"},
		{"gpu", func(c *Config) { c.GPU.MemoryLimit = "lots" }, "GPU memory limit"},
		{"fuzzy scale", func(c *Config) { c.Matching.FuzzyScoreScale = 1 }, "fuzzy_score_scale"},
		{"joined scale", func(c *Config) { c.Matching.JoinedScoreScale = 0 }, "joined_score_scale"},
		{"hypotheses", func(c *Config) {
			c.Refiner.Hypotheses = []refiner.Geometry{{Name: "top", X2: 1, Y2: 0.5}, {Name: "top", X2: 1, Y2: 1}}
		}, "invalid refiner config"},
		{"hypotheses without full crop", func(c *Config) {
			c.Refiner.Hypotheses = []refiner.Geometry{
				{Name: "a", X2: 1, Y2: 0.5}, {Name: "b", X2: 1, Y2: 0.4},
				{Name: "c", X2: 1, Y2: 0.3}, {Name: "d", X2: 1, Y2: 0.2},
			}
		}, "invalid refiner config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"512MB", 512 << 20, false},
		{"1gb", 1 << 30, false},
		{"2KB", 2048, false},
		{"100B", 100, false},
		{"1.5GB", 3 << 29, false},
		{"12", 0, true},
		{"xMB", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMemoryLimit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMemoryLimit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMemoryLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detection.ConfidenceFloor = 0.4
	cfg.Detection.Classes = []string{"bottle"}
	cfg.OCR.Variants = []string{"grayscale", "otsu"}
	cfg.Backends.Languages = []string{"eng", "deu"}
	cfg.Matching.DictionaryPath = "/nonexistent/brands.yaml"
	cfg.Scoring.BrandWeight = 0.8
	cfg.Dedupe.CentroidDistance = 0
	cfg.Parallel.RegionWorkers = 3
	cfg.Parallel.ImageWorkers = 2

	pc := cfg.ToPipelineConfig()
	if pc.Detector.ConfidenceFloor != 0.4 {
		t.Errorf("Expected confidence floor 0.4, got %f", pc.Detector.ConfidenceFloor)
	}
	if len(pc.Detector.Classes) != 1 || pc.Detector.Classes[0] != "bottle" {
		t.Errorf("Unexpected classes %v", pc.Detector.Classes)
	}
	if len(pc.OCR.Preprocess.Variants) != 2 {
		t.Errorf("Expected 2 variants, got %v", pc.OCR.Preprocess.Variants)
	}
	for _, page := range pc.OCR.Pages {
		if len(page.Languages) != 2 {
			t.Errorf("Page %s languages = %v", page.Name, page.Languages)
		}
	}
	if pc.DictionaryPath != "/nonexistent/brands.yaml" {
		t.Errorf("Unexpected dictionary path %q", pc.DictionaryPath)
	}
	if pc.Scoring.Weights.Brand != 0.8 {
		t.Errorf("Expected brand weight 0.8, got %f", pc.Scoring.Weights.Brand)
	}
	if pc.Dedupe.CentroidDistance != 0 {
		t.Errorf("Expected centroid distance disabled, got %f", pc.Dedupe.CentroidDistance)
	}
	if pc.Workers != 3 || pc.Parallel.MaxWorkers != 2 {
		t.Errorf("Unexpected workers %d/%d", pc.Workers, pc.Parallel.MaxWorkers)
	}

	if _, err := pipeline.NewBuilder().WithConfig(pc).Build(); err == nil {
		t.Error("Expected missing dictionary file to fail the build")
	}
	cfg.Matching.DictionaryPath = ""
	if _, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build(); err != nil {
		t.Errorf("Build() with converted config: %v", err)
	}
}

func TestToBackendConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/models"
	cfg.Backends.Detector = pipeline.BackendVision
	cfg.Backends.OCR = pipeline.BackendNone
	cfg.Backends.UseSmallModel = true
	cfg.Backends.InputSize = 320
	cfg.Backends.CredentialsFile = "/secrets/sa.json"
	cfg.GPU.Enabled = true
	cfg.GPU.MemoryLimit = "1GB"

	bc := cfg.ToBackendConfig()
	if bc.Detector != pipeline.BackendVision || bc.OCR != pipeline.BackendNone {
		t.Errorf("Unexpected backends %s/%s", bc.Detector, bc.OCR)
	}
	if !bc.UseSmall || bc.ModelsDir != "/models" {
		t.Errorf("Unexpected model selection %+v", bc)
	}
	if bc.YOLO.InputSize != 320 {
		t.Errorf("Expected input size 320, got %d", bc.YOLO.InputSize)
	}
	if !bc.YOLO.GPU.UseGPU || bc.YOLO.GPU.GPUMemLimit != 1<<30 {
		t.Errorf("Unexpected GPU config %+v", bc.YOLO.GPU)
	}
	if bc.Vision.CredentialsFile != "/secrets/sa.json" || bc.Vision.MaxObjects != 50 {
		t.Errorf("Unexpected vision config %+v", bc.Vision)
	}
}

func TestToPipelineConfigHypotheses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refiner.Hypotheses = []refiner.Geometry{
		{Name: "top-half", X1: 0, Y1: 0, X2: 1, Y2: 0.5},
		{Name: "top-third", X1: 0, Y1: 0, X2: 1, Y2: 0.33},
		{Name: "middle", X1: 0.1, Y1: 0.25, X2: 0.9, Y2: 0.75},
		{Name: refiner.FullCrop, X1: 0, Y1: 0, X2: 1, Y2: 1},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	pc := cfg.ToPipelineConfig()
	if len(pc.Refiner.Hypotheses) != 4 || pc.Refiner.Hypotheses[0].Name != "top-half" {
		t.Errorf("Expected custom hypotheses, got %+v", pc.Refiner.Hypotheses)
	}

	cfg.Refiner.Hypotheses = nil
	if got := len(cfg.ToPipelineConfig().Refiner.Hypotheses); got != len(refiner.DefaultConfig().Hypotheses) {
		t.Errorf("Expected built-in hypotheses when none configured, got %d", got)
	}
}
