package pipeline

import (
	"image"

	"github.com/MeKo-Tech/brandscan/internal/scoring"
)

// EvidenceSummary is the serialized trace of what produced a product.
type EvidenceSummary struct {
	GenericClass       string   `json:"generic_class"`
	DetectorConfidence float64  `json:"detector_confidence"`
	Hypothesis         string   `json:"hypothesis,omitempty"`
	HypothesisBox      []int    `json:"hypothesis_box,omitempty"`
	OCRCoverage        float64  `json:"ocr_coverage"`
	Texts              []string `json:"texts,omitempty"`
	MatchedPattern     string   `json:"matched_pattern,omitempty"`
	MatchedText        string   `json:"matched_text,omitempty"`
	MatchScore         float64  `json:"match_score"`
	Corrected          bool     `json:"corrected,omitempty"`
	Approximate        bool     `json:"approximate,omitempty"`
	Fallback           bool     `json:"fallback,omitempty"`
}

// ProductResult is one identified product in output form.
type ProductResult struct {
	BBox       [4]int          `json:"bbox"`
	Brand      string          `json:"brand"`
	Confidence float64         `json:"confidence"`
	Identified bool            `json:"identified"`
	Evidence   EvidenceSummary `json:"evidence_summary"`
}

// Box returns the product bounding box as a rectangle.
func (r ProductResult) Box() image.Rectangle {
	return image.Rect(r.BBox[0], r.BBox[1], r.BBox[2], r.BBox[3])
}

// Result is the per-image pipeline output.
type Result struct {
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Products   []ProductResult `json:"products"`
	Candidates int             `json:"candidates"`
	Fallback   bool            `json:"fallback"`
	Trace      []State         `json:"trace"`
	Processing struct {
		DetectionNs  int64 `json:"detection_ns"`
		ExtractionNs int64 `json:"extraction_ns"`
		TotalNs      int64 `json:"total_ns"`
	} `json:"processing"`
}

func rectArray(r image.Rectangle) [4]int {
	return [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
}

func toProductResult(p scoring.Product) ProductResult {
	ev := EvidenceSummary{
		GenericClass:       p.Evidence.GenericClass,
		DetectorConfidence: p.Evidence.DetectorConfidence,
		Hypothesis:         p.Evidence.Hypothesis,
		OCRCoverage:        p.Evidence.Coverage,
		Texts:              p.Evidence.Texts,
		Fallback:           p.Evidence.Fallback,
	}
	if !p.Evidence.HypothesisBox.Empty() {
		hb := rectArray(p.Evidence.HypothesisBox)
		ev.HypothesisBox = hb[:]
	}
	if m := p.Evidence.Match; m != nil {
		ev.MatchedPattern = m.Pattern
		ev.MatchedText = m.Text
		ev.MatchScore = m.Score
		ev.Corrected = m.Corrected
		ev.Approximate = m.Approximate
	}
	return ProductResult{
		BBox:       rectArray(p.Box),
		Brand:      p.Brand,
		Confidence: p.Confidence,
		Identified: p.Identified,
		Evidence:   ev,
	}
}
