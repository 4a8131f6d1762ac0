package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	res := &Result{
		Width:  200,
		Height: 100,
		Trace:  FullTrace,
		Products: []ProductResult{
			{
				BBox:       [4]int{10, 10, 60, 90},
				Brand:      "Heineken",
				Confidence: 0.91,
				Identified: true,
				Evidence: EvidenceSummary{
					GenericClass:   "bottle",
					Hypothesis:     "centre-upper",
					MatchedPattern: "HEINEKEN",
					MatchScore:     1,
				},
			},
			{
				BBox:       [4]int{100, 20, 150, 80},
				Brand:      "Unidentified can",
				Confidence: 0.2,
				Evidence:   EvidenceSummary{GenericClass: "can"},
			},
		},
	}
	return res
}

func TestToJSON(t *testing.T) {
	out, err := ToJSON(sampleResult())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	products, ok := decoded["products"].([]any)
	require.True(t, ok)
	require.Len(t, products, 2)

	first := products[0].(map[string]any)
	assert.Equal(t, "Heineken", first["brand"])
	assert.Equal(t, []any{10.0, 10.0, 60.0, 90.0}, first["bbox"])
	ev := first["evidence_summary"].(map[string]any)
	assert.Equal(t, "HEINEKEN", ev["matched_pattern"])
	assert.Equal(t, "bottle", ev["generic_class"])

	_, err = ToJSON(nil)
	require.Error(t, err)
}

func TestToJSONProducts(t *testing.T) {
	out, err := ToJSONProducts(&Result{Products: []ProductResult{}})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	out, err = ToJSONProducts(sampleResult())
	require.NoError(t, err)
	var products []ProductResult
	require.NoError(t, json.Unmarshal([]byte(out), &products))
	assert.Equal(t, sampleResult().Products, products)
}

func TestToJSONResults(t *testing.T) {
	out, err := ToJSONResults([]*Result{sampleResult(), sampleResult()})
	require.NoError(t, err)
	var decoded []Result
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 2)
}

func TestToPlainText(t *testing.T) {
	out, err := ToPlainText(sampleResult())
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Heineken\t0.910\t[10 10 60 90]", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Unidentified can\t0.200"))
}

func TestToCSV(t *testing.T) {
	out, err := ToCSV(sampleResult())
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "brand", records[0][4])
	assert.Equal(t, []string{"10", "10", "60", "90", "Heineken", "0.910", "true", "bottle", "centre-upper", "HEINEKEN"}, records[1])
	assert.Equal(t, "false", records[2][6])
}

func TestValidateResult(t *testing.T) {
	require.NoError(t, ValidateResult(sampleResult()))
	require.Error(t, ValidateResult(nil))

	bad := sampleResult()
	bad.Products[0].BBox = [4]int{10, 10, 260, 90}
	require.Error(t, ValidateResult(bad))

	bad = sampleResult()
	bad.Products[1].Confidence = 1.5
	require.Error(t, ValidateResult(bad))

	bad = sampleResult()
	bad.Width = 0
	require.Error(t, ValidateResult(bad))
}
