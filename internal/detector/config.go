package detector

import (
	"errors"
	"fmt"
)

// Config holds the thresholds applied to raw object detections.
type Config struct {
	ConfidenceFloor float64  // minimum detector score passed to the backend (default: 0.25)
	IoUThreshold    float64  // backend non-maximum suppression threshold (default: 0.45)
	MinRelativeArea float64  // candidates smaller than this fraction of the image are noise (default: 0.01)
	MaxRelativeArea float64  // candidates larger than this fraction are background (default: 0.60)
	Classes         []string // optional allowlist of generic classes; empty keeps all
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor: 0.25,
		IoUThreshold:    0.45,
		MinRelativeArea: 0.01,
		MaxRelativeArea: 0.60,
	}
}

// Validate checks detection thresholds.
func (c Config) Validate() error {
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence floor must be in [0,1], got %f", c.ConfidenceFloor)
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("IoU threshold must be in (0,1], got %f", c.IoUThreshold)
	}
	if c.MinRelativeArea < 0 || c.MaxRelativeArea > 1 {
		return fmt.Errorf("relative area bounds must be within [0,1], got [%f,%f]",
			c.MinRelativeArea, c.MaxRelativeArea)
	}
	if c.MinRelativeArea >= c.MaxRelativeArea {
		return errors.New("min relative area must be below max relative area")
	}
	return nil
}
