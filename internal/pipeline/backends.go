package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/models"
	"github.com/MeKo-Tech/brandscan/internal/ocr"
	"github.com/MeKo-Tech/brandscan/internal/vision"
)

// Backend names accepted by BackendConfig.
const (
	BackendYOLO      = "yolo"
	BackendVision    = "vision"
	BackendTesseract = "tesseract"
	BackendNone      = "none"
)

// BackendConfig selects and configures the external capabilities.
type BackendConfig struct {
	Detector  string // yolo, vision or none
	OCR       string // tesseract, vision or none
	ModelsDir string // root of the model tree; empty uses the default lookup
	UseSmall  bool   // prefer the small detector variant
	YOLO      detector.YOLOConfig
	Tesseract ocr.TesseractConfig
	Vision    vision.Config
}

// DefaultBackendConfig uses the local YOLO model and Tesseract.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Detector:  BackendYOLO,
		OCR:       BackendTesseract,
		YOLO:      detector.DefaultYOLOConfig(),
		Tesseract: ocr.DefaultTesseractConfig(),
		Vision:    vision.DefaultConfig(),
	}
}

// Backends are the opened capabilities. Nil fields are valid and make the
// pipeline degrade instead of fail.
type Backends struct {
	Detector detector.ObjectDetector
	OCR      ocr.Engine
	Closers  []io.Closer
}

// Close releases every opened backend.
func (b *Backends) Close() error {
	var errs []error
	for _, c := range b.Closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.Closers = nil
	return errors.Join(errs...)
}

// Apply installs the backends on a builder; Pipeline.Close then releases them.
func (b *Backends) Apply(builder *Builder) *Builder {
	builder.WithObjectDetector(b.Detector).WithOCREngine(b.OCR)
	for _, c := range b.Closers {
		builder.WithCloser(c)
	}
	return builder
}

// OpenBackends opens the configured capabilities. A missing model, library or
// credential is logged and leaves that capability nil; only unknown backend
// names are errors.
func OpenBackends(ctx context.Context, cfg BackendConfig) (*Backends, error) {
	b := &Backends{}
	var shared *vision.Client

	openVision := func() *vision.Client {
		if shared != nil {
			return shared
		}
		c, err := vision.New(ctx, cfg.Vision)
		if err != nil {
			slog.Warn("Cloud Vision unavailable", "error", err)
			return nil
		}
		shared = c
		b.Closers = append(b.Closers, c)
		return c
	}

	switch cfg.Detector {
	case BackendYOLO:
		ycfg := cfg.YOLO
		if ycfg.ModelPath == "" {
			ycfg.ModelPath = models.GetDetectorModelPath(cfg.ModelsDir, cfg.UseSmall)
		}
		y, err := detector.NewYOLO(ycfg)
		if err != nil {
			slog.Warn("Object detector unavailable, images will be scanned whole",
				"model", ycfg.ModelPath, "error", err)
			break
		}
		b.Detector = y
		b.Closers = append(b.Closers, y)
	case BackendVision:
		if c := openVision(); c != nil {
			b.Detector = c
		}
	case BackendNone, "":
	default:
		_ = b.Close()
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Detector)
	}

	switch cfg.OCR {
	case BackendTesseract:
		tcfg := cfg.Tesseract
		if tcfg.TessdataPrefix == "" && cfg.ModelsDir != "" {
			tcfg.TessdataPrefix = models.GetTessdataDir(cfg.ModelsDir)
		}
		e, err := ocr.NewEngine(BackendTesseract, tcfg)
		if err != nil {
			slog.Warn("OCR engine unavailable, products will be unidentified", "error", err)
			break
		}
		b.OCR = e
		if c, ok := e.(io.Closer); ok {
			b.Closers = append(b.Closers, c)
		}
	case BackendVision:
		if c := openVision(); c != nil {
			b.OCR = c
		}
	case BackendNone, "":
	default:
		_ = b.Close()
		return nil, fmt.Errorf("unknown ocr backend %q", cfg.OCR)
	}

	slog.Debug("Backends opened",
		"detector", backendName(b.Detector),
		"ocr", engineName(b.OCR))
	return b, nil
}
