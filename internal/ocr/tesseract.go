package ocr

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// TesseractConfig configures the Tesseract backend.
type TesseractConfig struct {
	TessdataPrefix      string   // directory holding *.traineddata; empty uses the system default
	Languages           []string // default: ["eng"]
	DisableDictionaries bool     // turn off system and frequency word lists
}

// DefaultTesseractConfig returns English with dictionaries disabled.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{Languages: []string{"eng"}, DisableDictionaries: true}
}

func (c TesseractConfig) withDefaults() TesseractConfig {
	if len(c.Languages) == 0 {
		c.Languages = []string{"eng"}
	}
	return c
}

// initVariables returns the Tesseract parameters that are only read while the
// engine initialises. SetVariable after Init ignores them.
func (c TesseractConfig) initVariables() map[string]string {
	if !c.DisableDictionaries {
		return nil
	}
	// Brand names are rarely dictionary words; the word lists bias output away from them.
	return map[string]string{
		"load_system_dawg": "F",
		"load_freq_dawg":   "F",
	}
}

// writeInitConfig writes vars as a Tesseract config file in dir (the system
// temp dir when empty) and returns its path. It returns "" when vars is empty.
func writeInitConfig(dir string, vars map[string]string) (string, error) {
	if len(vars) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		fmt.Fprintf(&b, "%s %s\n", k, vars[k])
	}

	f, err := os.CreateTemp(dir, "brandscan-tesseract-*.config")
	if err != nil {
		return "", fmt.Errorf("failed to create tesseract config: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write tesseract config: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write tesseract config: %w", err)
	}
	return f.Name(), nil
}
