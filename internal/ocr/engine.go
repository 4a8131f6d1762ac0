// Package ocr runs an external OCR engine over preprocessed variants of a
// region and pools the readable strings.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	// ErrEngineUnavailable is returned when an OCR backend cannot be used.
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
	// ErrBudgetExceeded marks an invocation that outlived its time budget.
	ErrBudgetExceeded = errors.New("ocr invocation exceeded its time budget")
)

// Tesseract page segmentation modes used by the default configurations.
const (
	PSMSingleBlock  = 6
	PSMSingleLine   = 7
	PSMSingleWord   = 8
	PSMSparseText   = 11
	PSMRawLine      = 13
	PSMAutoFallback = 3
)

// PageConfig is one OCR configuration in the ensemble cross-product.
type PageConfig struct {
	Name        string   `mapstructure:"name" yaml:"name" json:"name"`
	PageSegMode int      `mapstructure:"psm" yaml:"psm" json:"psm"`
	Whitelist   string   `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist,omitempty"`
	Languages   []string `mapstructure:"languages" yaml:"languages" json:"languages,omitempty"`
}

// DefaultPageConfigs returns the five page layouts tried for every variant.
func DefaultPageConfigs() []PageConfig {
	return []PageConfig{
		{Name: "block", PageSegMode: PSMSingleBlock},
		{Name: "line", PageSegMode: PSMSingleLine},
		{Name: "word", PageSegMode: PSMSingleWord},
		{Name: "sparse", PageSegMode: PSMSparseText},
		{Name: "raw-line", PageSegMode: PSMRawLine},
	}
}

// Engine is the OCR capability consumed by the ensemble.
// Read must be safe for concurrent use.
type Engine interface {
	Name() string
	Read(ctx context.Context, img image.Image, cfg PageConfig) (string, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, img image.Image, cfg PageConfig) (string, error)

// Name implements Engine.
func (f EngineFunc) Name() string { return "func" }

// Read implements Engine.
func (f EngineFunc) Read(ctx context.Context, img image.Image, cfg PageConfig) (string, error) {
	return f(ctx, img, cfg)
}

// NewEngine constructs a named backend. Supported: "tesseract", "none".
// Cloud backends live in the vision package and are wired by the caller.
func NewEngine(name string, cfg TesseractConfig) (Engine, error) {
	switch name {
	case "tesseract":
		t, err := NewTesseract(cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ocr backend %q", name)
	}
}
