//go:build cgo

package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/brandscan/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract reads text with a local Tesseract installation through gosseract.
// Every call uses its own client, so concurrent reads do not share state.
type Tesseract struct {
	cfg        TesseractConfig
	configFile string // init-time variables, removed by Close
}

// NewTesseract initialises Tesseract once with cfg so that a missing library,
// tessdata directory or language fails here rather than on the first read.
func NewTesseract(cfg TesseractConfig) (*Tesseract, error) {
	cfg = cfg.withDefaults()
	configFile, err := writeInitConfig("", cfg.initVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	t := &Tesseract{cfg: cfg, configFile: configFile}
	version, err := t.check()
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	slog.Debug("Tesseract engine ready", "version", version, "languages", cfg.Languages)
	return t, nil
}

// check runs recognition on a blank page, which forces gosseract to load the
// configured languages.
func (t *Tesseract) check() (string, error) {
	blank := image.NewGray(image.Rect(0, 0, 16, 16))
	draw.Draw(blank, blank.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	data, err := utils.EncodePNG(blank)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			slog.Debug("Failed to close tesseract client", "error", err)
		}
	}()
	if err := t.configure(client, t.cfg.Languages); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to load image into tesseract: %w", err)
	}
	if _, err := client.Text(); err != nil {
		return "", fmt.Errorf("failed to initialise tesseract with languages %v: %w", t.cfg.Languages, err)
	}
	return client.Version(), nil
}

// Name implements Engine.
func (t *Tesseract) Name() string { return "tesseract" }

// Close removes the init config file.
func (t *Tesseract) Close() error {
	if t.configFile == "" {
		return nil
	}
	err := os.Remove(t.configFile)
	t.configFile = ""
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Read runs one recognition pass over img.
func (t *Tesseract) Read(ctx context.Context, img image.Image, page PageConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := utils.EncodePNG(img)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			slog.Debug("Failed to close tesseract client", "error", err)
		}
	}()

	langs := page.Languages
	if len(langs) == 0 {
		langs = t.cfg.Languages
	}
	if err := t.configure(client, langs); err != nil {
		return "", err
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(page.PageSegMode)); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode %d: %w", page.PageSegMode, err)
	}
	if page.Whitelist != "" {
		if err := client.SetWhitelist(page.Whitelist); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to load image into tesseract: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognition failed: %w", err)
	}
	return text, nil
}

func (t *Tesseract) configure(client *gosseract.Client, langs []string) error {
	if t.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.cfg.TessdataPrefix); err != nil {
			return fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(langs...); err != nil {
		return fmt.Errorf("failed to set languages %v: %w", langs, err)
	}
	if t.configFile != "" {
		if err := client.SetConfigFile(t.configFile); err != nil {
			return fmt.Errorf("failed to set tesseract config file: %w", err)
		}
	}
	return nil
}
