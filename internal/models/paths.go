package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model and data file names.
const (
	// Object detection models.
	DetectorYOLOv8n = "yolov8n.onnx"
	DetectorYOLOv8s = "yolov8s.onnx"

	// Class label files, one label per line.
	LabelsCOCO = "coco.names"

	// Tesseract language data directory.
	TessdataDir = "tessdata"
)

// Model type categories for organized directory structure.
const (
	TypeDetection = "detection"
	TypeLabels    = "labels"
	TypeOCR       = "ocr"
)

// Model variant categories.
const (
	VariantNano  = "nano"
	VariantSmall = "small"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "BRANDSCAN_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("could not find project root (go.mod not found)")
}

// ModelInfo contains metadata about a model or data file.
type ModelInfo struct {
	Name        string
	Type        string
	Variant     string
	Description string
	Filename    string
}

// GetModelsDir returns the models directory path from various sources
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath resolves a filename to its full path, preferring the
// organized layout and falling back to a flat directory.
func ResolveModelPath(modelsDir, modelType, variant, filename string) string {
	baseDir := GetModelsDir(modelsDir)

	if modelType != "" {
		organizedPath := filepath.Join(baseDir, modelType, filename)
		if variant != "" && modelType == TypeDetection {
			organizedPath = filepath.Join(baseDir, modelType, variant, filename)
		}
		if _, err := os.Stat(organizedPath); err == nil {
			return organizedPath
		}
	}

	return filepath.Join(baseDir, filename)
}

// GetDetectorModelPath returns the path for the object detector model.
func GetDetectorModelPath(modelsDir string, useSmall bool) string {
	if useSmall {
		return ResolveModelPath(modelsDir, TypeDetection, VariantSmall, DetectorYOLOv8s)
	}
	return ResolveModelPath(modelsDir, TypeDetection, VariantNano, DetectorYOLOv8n)
}

// GetLabelsPath returns the path for a class label file.
func GetLabelsPath(modelsDir, filename string) string {
	return ResolveModelPath(modelsDir, TypeLabels, "", filename)
}

// GetTessdataDir returns the tessdata directory under the models directory.
func GetTessdataDir(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeOCR, "", TessdataDir)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns information about known models.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "yolov8n",
			Type:        TypeDetection,
			Variant:     VariantNano,
			Description: "YOLOv8 nano object detector (COCO classes)",
			Filename:    DetectorYOLOv8n,
		},
		{
			Name:        "yolov8s",
			Type:        TypeDetection,
			Variant:     VariantSmall,
			Description: "YOLOv8 small object detector (COCO classes)",
			Filename:    DetectorYOLOv8s,
		},
		{
			Name:        "coco-labels",
			Type:        TypeLabels,
			Description: "COCO class names",
			Filename:    LabelsCOCO,
		},
		{
			Name:        "tessdata",
			Type:        TypeOCR,
			Description: "Tesseract language data",
			Filename:    TessdataDir,
		},
	}
}
