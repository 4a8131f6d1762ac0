package testutil

import (
	"context"
	"errors"
	"image"
	"sync/atomic"

	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/ocr"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// ErrFakeUnavailable is returned by fakes configured to fail.
var ErrFakeUnavailable = errors.New("fake capability unavailable")

// FakeDetector returns canned detections.
type FakeDetector struct {
	Detections []detector.Detection
	Err        error
	Panic      bool

	calls atomic.Int64
}

// NewFakeDetectorFromItems reports every shelf item as a detection.
func NewFakeDetectorFromItems(items []ShelfItem, label string, score float64) *FakeDetector {
	d := &FakeDetector{}
	for _, it := range items {
		d.Detections = append(d.Detections, detector.Detection{
			Box:   utils.BoxFromRect(it.Box),
			Label: label,
			Score: score,
		})
	}
	return d
}

// Name implements detector.ObjectDetector.
func (f *FakeDetector) Name() string { return "fake" }

// Detect implements detector.ObjectDetector.
func (f *FakeDetector) Detect(context.Context, image.Image, float64) ([]detector.Detection, error) {
	f.calls.Add(1)
	if f.Panic {
		panic("fake detector crashed")
	}
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]detector.Detection, len(f.Detections))
	copy(out, f.Detections)
	return out, nil
}

// Calls reports how many times Detect ran.
func (f *FakeDetector) Calls() int64 { return f.calls.Load() }

// FakeEngine answers OCR reads with a function of the image and page config.
type FakeEngine struct {
	Respond func(img image.Image, page ocr.PageConfig) (string, error)

	calls atomic.Int64
}

// NewStaticEngine returns the same text for every read.
func NewStaticEngine(text string) *FakeEngine {
	return &FakeEngine{Respond: func(image.Image, ocr.PageConfig) (string, error) { return text, nil }}
}

// NewFailingEngine fails every read.
func NewFailingEngine() *FakeEngine {
	return &FakeEngine{Respond: func(image.Image, ocr.PageConfig) (string, error) { return "", ErrFakeUnavailable }}
}

// NewSizedEngine answers by crop width: the text of the first entry whose
// width range contains the crop width, otherwise empty.
func NewSizedEngine(byWidth map[[2]int]string) *FakeEngine {
	return &FakeEngine{Respond: func(img image.Image, _ ocr.PageConfig) (string, error) {
		w := img.Bounds().Dx()
		for r, text := range byWidth {
			if w >= r[0] && w <= r[1] {
				return text, nil
			}
		}
		return "", nil
	}}
}

// Name implements ocr.Engine.
func (f *FakeEngine) Name() string { return "fake" }

// Read implements ocr.Engine.
func (f *FakeEngine) Read(ctx context.Context, img image.Image, page ocr.PageConfig) (string, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Respond == nil {
		return "", nil
	}
	return f.Respond(img, page)
}

// Calls reports how many times Read ran.
func (f *FakeEngine) Calls() int64 { return f.calls.Load() }
