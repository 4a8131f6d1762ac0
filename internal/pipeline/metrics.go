package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK        = "ok"
	statusMalformed = "malformed"
	statusCancelled = "cancelled"
)

// Metrics records pipeline activity on its own registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	imagesTotal       *prometheus.CounterVec
	detectorFallbacks prometheus.Counter
	candidates        prometheus.Histogram
	ocrInvocations    *prometheus.CounterVec
	ocrDuration       prometheus.Histogram
	productsTotal     *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors on reg, or on a fresh
// registry when reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		imagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandscan_images_total",
				Help: "Total number of images submitted for identification",
			},
			[]string{"status"}, // status: ok, malformed, cancelled
		),
		detectorFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "brandscan_detector_fallbacks_total",
				Help: "Images processed as a single whole-image candidate after a detector failure",
			},
		),
		candidates: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "brandscan_candidates_per_image",
				Help:    "Number of detection candidates kept per image",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),
		ocrInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandscan_ocr_invocations_total",
				Help: "OCR engine invocations by outcome",
			},
			[]string{"outcome"}, // outcome: text, noise, error, timeout
		),
		ocrDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "brandscan_ocr_invocation_duration_seconds",
				Help:    "Duration of single OCR engine invocations",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		productsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandscan_products_total",
				Help: "Products reported after deduplication",
			},
			[]string{"identified"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brandscan_stage_duration_seconds",
				Help:    "Time spent in each pipeline state",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"state"},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the current metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// ObserveOCR implements ocr.Recorder.
func (m *Metrics) ObserveOCR(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ocrInvocations.WithLabelValues(outcome).Inc()
	m.ocrDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeImage(status string) {
	if m == nil {
		return
	}
	m.imagesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) observeDetection(candidates int, fallback bool) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(candidates))
	if fallback {
		m.detectorFallbacks.Inc()
	}
}

func (m *Metrics) observeProduct(identified bool) {
	if m == nil {
		return
	}
	m.productsTotal.WithLabelValues(strconv.FormatBool(identified)).Inc()
}

func (m *Metrics) observeStage(s State, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(s)).Observe(elapsed.Seconds())
}
