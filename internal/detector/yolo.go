package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/MeKo-Tech/brandscan/internal/mempool"
	"github.com/MeKo-Tech/brandscan/internal/onnx"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// YOLOConfig configures the ONNX object detector backend.
type YOLOConfig struct {
	ModelPath    string
	LabelsPath   string // empty uses COCO labels
	InputSize    int    // square input side used when the model has dynamic dims (default: 640)
	IoUThreshold float64
	NumThreads   int
	GPU          onnx.GPUConfig
}

// DefaultYOLOConfig returns defaults for a stock YOLOv8 export.
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		InputSize:    640,
		IoUThreshold: 0.45,
		GPU:          onnx.DefaultGPUConfig(),
	}
}

// YOLO runs a YOLOv5/v8-style ONNX export.
type YOLO struct {
	cfg       YOLOConfig
	labels    []string
	inputSize int

	mu      sync.Mutex
	session *onnx.Session
}

// NewYOLO opens the model and reads its labels.
func NewYOLO(cfg YOLOConfig) (*YOLO, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultYOLOConfig().InputSize
	}
	if cfg.IoUThreshold <= 0 || cfg.IoUThreshold > 1 {
		return nil, fmt.Errorf("IoU threshold must be in (0,1], got %f", cfg.IoUThreshold)
	}
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	slog.Debug("Initializing object detector",
		"model_path", cfg.ModelPath,
		"labels", len(labels),
		"gpu_enabled", cfg.GPU.UseGPU)

	session, err := onnx.OpenSession(onnx.SessionConfig{
		ModelPath:  cfg.ModelPath,
		NumThreads: cfg.NumThreads,
		GPU:        cfg.GPU,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	size := cfg.InputSize
	if dims := session.Input.Dimensions; len(dims) == 4 && dims[2] > 0 && dims[2] == dims[3] {
		size = int(dims[2])
	}

	return &YOLO{cfg: cfg, labels: labels, inputSize: size, session: session}, nil
}

// Name identifies the backend.
func (y *YOLO) Name() string { return "yolo" }

// Labels returns the class names in model order.
func (y *YOLO) Labels() []string { return y.labels }

// Close releases the ONNX session.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.session == nil {
		return nil
	}
	err := y.session.Destroy()
	y.session = nil
	return err
}

// Detect letterboxes img, runs inference and decodes boxes above confidenceFloor.
func (y *YOLO) Detect(ctx context.Context, img image.Image, confidenceFloor float64) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	boxed, info, err := utils.Letterbox(img, y.inputSize)
	if err != nil {
		return nil, err
	}
	data, w, h := utils.NormalizeImagePooled(boxed)
	defer mempool.PutFloat32(data)

	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	y.mu.Lock()
	session := y.session
	if session == nil {
		y.mu.Unlock()
		return nil, errors.New("detector session is closed")
	}
	out, shape, err := session.RunFloat32(tensor)
	y.mu.Unlock()
	if err != nil {
		return nil, err
	}

	dets, err := DecodeYOLO(out, shape, len(y.labels), confidenceFloor, info)
	if err != nil {
		return nil, err
	}
	for i := range dets {
		dets[i].Label = labelFor(y.labels, dets[i].Label)
	}
	dets = NonMaxSuppression(dets, y.cfg.IoUThreshold)

	slog.Debug("Object detector inference",
		"detections", len(dets),
		"duration_ms", time.Since(start).Milliseconds())
	return dets, nil
}

// DecodeYOLO converts raw model output into image-space detections.
//
// Two layouts are accepted: [1, 4+nc, N] (v8, attribute-major) and
// [1, N, 5+nc] or [1, N, 4+nc] (row-major, with or without objectness).
// Detection.Label carries the class index as a decimal string until mapped.
func DecodeYOLO(data []float32, shape []int64, numClasses int, floor float64, info utils.LetterboxInfo) ([]Detection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	if numClasses <= 0 {
		return nil, errors.New("number of classes must be positive")
	}
	a, b := int(shape[1]), int(shape[2])
	if a*b != len(data) {
		return nil, fmt.Errorf("output length %d does not match shape %v", len(data), shape)
	}

	var (
		n, attrs   int
		attrMajor  bool
		objectness bool
	)
	switch {
	case a == 4+numClasses:
		attrMajor, attrs, n = true, a, b
	case b == 4+numClasses:
		attrs, n = b, a
	case b == 5+numClasses:
		attrs, n, objectness = b, a, true
	default:
		return nil, fmt.Errorf("output shape %v does not fit %d classes", shape, numClasses)
	}

	at := func(i, k int) float64 {
		if attrMajor {
			return float64(data[k*n+i])
		}
		return float64(data[i*attrs+k])
	}

	classOffset := 4
	if objectness {
		classOffset = 5
	}

	var dets []Detection
	for i := range n {
		best, bestScore := -1, 0.0
		for c := range numClasses {
			if s := at(i, classOffset+c); s > bestScore {
				best, bestScore = c, s
			}
		}
		if objectness {
			bestScore *= at(i, 4)
		}
		if best < 0 || bestScore < floor {
			continue
		}
		cx, cy, w, h := at(i, 0), at(i, 1), at(i, 2), at(i, 3)
		x1, y1 := info.Unmap(cx-w/2, cy-h/2)
		x2, y2 := info.Unmap(cx+w/2, cy+h/2)
		dets = append(dets, Detection{
			Box:   utils.NewBox(x1, y1, x2, y2),
			Label: strconv.Itoa(best),
			Score: bestScore,
		})
	}
	return dets, nil
}

func labelFor(labels []string, index string) string {
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(labels) {
		return UnknownClass
	}
	return labels[i]
}
