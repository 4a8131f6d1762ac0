package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ToJSON serializes a single Result to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONProducts serializes only the product list, the shape consumed by
// calling applications.
func ToJSONProducts(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.Marshal(res.Products)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONResults serializes multiple results to pretty JSON.
func ToJSONResults(results []*Result) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPlainText lists one product per line.
func ToPlainText(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	lines := make([]string, 0, len(res.Products))
	for _, p := range res.Products {
		lines = append(lines, fmt.Sprintf("%s\t%.3f\t[%d %d %d %d]",
			p.Brand, p.Confidence, p.BBox[0], p.BBox[1], p.BBox[2], p.BBox[3]))
	}
	return strings.Join(lines, "\n"), nil
}

// ToCSV exports products as CSV with a header row.
func ToCSV(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"x1", "y1", "x2", "y2", "brand", "confidence", "identified", "class", "hypothesis", "matched_pattern"})
	for _, p := range res.Products {
		_ = w.Write([]string{
			strconv.Itoa(p.BBox[0]),
			strconv.Itoa(p.BBox[1]),
			strconv.Itoa(p.BBox[2]),
			strconv.Itoa(p.BBox[3]),
			p.Brand,
			fmt.Sprintf("%.3f", p.Confidence),
			strconv.FormatBool(p.Identified),
			p.Evidence.GenericClass,
			p.Evidence.Hypothesis,
			p.Evidence.MatchedPattern,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateResult checks that every box lies within the image and every
// confidence is in [0,1].
func ValidateResult(res *Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", res.Width, res.Height)
	}
	for i, p := range res.Products {
		x1, y1, x2, y2 := p.BBox[0], p.BBox[1], p.BBox[2], p.BBox[3]
		if x1 < 0 || y1 < 0 || x1 >= x2 || y1 >= y2 || x2 > res.Width || y2 > res.Height {
			return fmt.Errorf("product %d has invalid box %v for %dx%d image", i, p.BBox, res.Width, res.Height)
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			return fmt.Errorf("product %d confidence %f out of range", i, p.Confidence)
		}
	}
	return nil
}
