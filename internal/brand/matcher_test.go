package brand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	dict, err := DefaultDictionary()
	require.NoError(t, err)
	m, err := NewMatcher(dict, DefaultMatcherConfig())
	require.NoError(t, err)
	return m
}

func TestMatchCanonical(t *testing.T) {
	m := newTestMatcher(t)
	got := m.Match([]string{"HEINEKEN BEER"})
	require.NotNil(t, got)
	assert.Equal(t, "Heineken", got.Brand)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
	assert.True(t, got.Canonical)
	assert.False(t, got.Corrected)
	assert.False(t, got.Approximate)
}

func TestMatchConfusableCorrection(t *testing.T) {
	m := newTestMatcher(t)
	got := m.Match([]string{"HEIN3KEN"})
	require.NotNil(t, got)
	assert.Equal(t, "Heineken", got.Brand)
	assert.True(t, got.Corrected)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
	assert.Equal(t, "HEIN3KEN", got.Text, "uncorrected text is kept for audit")
}

func TestMatchConfusablesDisabled(t *testing.T) {
	dict, err := DefaultDictionary()
	require.NoError(t, err)
	cfg := DefaultMatcherConfig()
	cfg.UseConfusables = false
	cfg.EnableFuzzy = false
	m, err := NewMatcher(dict, cfg)
	require.NoError(t, err)
	assert.Nil(t, m.Match([]string{"HEIN3KEN"}))
}

func TestMatchDirectBeatsCorrectedOnTie(t *testing.T) {
	dict, err := NewDictionary([]Brand{
		{Name: "Alpha", Patterns: []string{"ALPH"}},
		{Name: "Omega"},
	}, 3)
	require.NoError(t, err)
	m, err := NewMatcher(dict, DefaultMatcherConfig())
	require.NoError(t, err)

	got := m.Match([]string{"ALPHA 0MEGA"})
	require.NotNil(t, got)
	assert.Equal(t, "Alpha", got.Brand)
	assert.False(t, got.Corrected)
}

func TestMatchPrefersCanonicalOverTruncation(t *testing.T) {
	dict, err := NewDictionary([]Brand{
		{Name: "Nutella", Patterns: []string{"NUTELL"}},
		{Name: "Dove"},
	}, 3)
	require.NoError(t, err)
	m, err := NewMatcher(dict, DefaultMatcherConfig())
	require.NoError(t, err)

	got := m.Match([]string{"NUTELL JAR", "DOVE SOAP"})
	require.NotNil(t, got)
	assert.Equal(t, "Dove", got.Brand, "full canonical name outranks a truncation")
	assert.InDelta(t, 1.0, got.Score, 1e-9)
}

func TestMatchTruncationScore(t *testing.T) {
	m := newTestMatcher(t)
	got := m.Match([]string{"XX HEINE XX"})
	require.NotNil(t, got)
	assert.Equal(t, "Heineken", got.Brand)
	assert.InDelta(t, 5.0/8.0, got.Score, 1e-9)
	assert.False(t, got.Canonical)
}

func TestMatchSpacedText(t *testing.T) {
	m := newTestMatcher(t)
	got := m.Match([]string{"coca - cola classic"})
	require.NotNil(t, got)
	assert.Equal(t, "Coca-Cola", got.Brand)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
}

func TestMatchRespectsWordBoundaries(t *testing.T) {
	strict, err := DefaultDictionary()
	require.NoError(t, err)
	cfg := DefaultMatcherConfig()
	cfg.EnableFuzzy = false
	exactOnly, err := NewMatcher(strict, cfg)
	require.NoError(t, err)
	m := newTestMatcher(t)

	for _, text := range []string{"MORE ON SALE", "THE INZ", "MO REO", "SPEP SI"} {
		t.Run(text, func(t *testing.T) {
			assert.Nil(t, exactOnly.Match([]string{text}))
			if got := m.Match([]string{text}); got != nil {
				assert.True(t, got.Approximate, "no exact hit may span a partial word, got %+v", got)
				assert.Less(t, got.Score, 1.0)
			}
		})
	}
}

func TestMatchJoinedWords(t *testing.T) {
	m := newTestMatcher(t)
	got := m.Match([]string{"HEINE KEN"})
	require.NotNil(t, got)
	assert.Equal(t, "Heineken", got.Brand)
	assert.True(t, got.Joined)
	assert.True(t, got.Canonical)
	assert.InDelta(t, 0.9, got.Score, 1e-9)

	// A spelling listed with its gap is an ordinary hit.
	got = m.Match([]string{"7 UP LEMON"})
	require.NotNil(t, got)
	assert.Equal(t, "7UP", got.Brand)
	assert.False(t, got.Joined)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
}

func TestMatchJoinedScoreScale(t *testing.T) {
	dict, err := NewDictionary([]Brand{{Name: "Ab Cd"}, {Name: "Zz", Patterns: []string{"ABCD"}}}, 3)
	require.NoError(t, err)
	cfg := DefaultMatcherConfig()
	cfg.JoinedScoreScale = 0.5
	m, err := NewMatcher(dict, cfg)
	require.NoError(t, err)

	got := m.Match([]string{"AB CD"})
	require.NotNil(t, got)
	assert.Equal(t, "Ab Cd", got.Brand)
	assert.False(t, got.Joined)

	got = m.Match([]string{"A BCD"})
	require.NotNil(t, got)
	assert.True(t, got.Joined, "ABCD aligns with word boundaries only when joined")
	assert.Equal(t, "Ab Cd", got.Brand)
	assert.InDelta(t, 0.5, got.Score, 1e-9)

	inWord := &Match{Brand: "Zz", Score: 0.5}
	joined := &Match{Brand: "Ab Cd", Score: 0.5, Canonical: true, Joined: true}
	assert.Same(t, inWord, better(joined, inWord))
	assert.Same(t, inWord, better(inWord, joined))
}

func TestMatchPrefersCanonicalAmongClampedPatterns(t *testing.T) {
	m := newTestMatcher(t)
	got := m.Match([]string{"CORONA EXTRA"})
	require.NotNil(t, got)
	assert.Equal(t, "Corona", got.Brand)
	assert.Equal(t, "CORONA", got.Pattern)
	assert.True(t, got.Canonical)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
}

func TestMatchApproximate(t *testing.T) {
	m := newTestMatcher(t)
	got := m.Match([]string{"PRNGLES"})
	require.NotNil(t, got)
	assert.Equal(t, "Pringles", got.Brand)
	assert.True(t, got.Approximate)
	assert.Less(t, got.Score, 1.0)
}

func TestMatchNone(t *testing.T) {
	m := newTestMatcher(t)
	assert.Nil(t, m.Match(nil))
	assert.Nil(t, m.Match([]string{"", "~~", "QX"}))
	assert.Nil(t, m.Match([]string{"ZZZZZZZ"}))
}

func TestMatchDeterministic(t *testing.T) {
	m := newTestMatcher(t)
	texts := []string{"PEPSI", "FANTA", "HEINZ"}
	first := m.Match(texts)
	for range 10 {
		assert.Equal(t, first, m.Match(texts))
	}
	assert.Equal(t, "Fanta", first.Brand, "ties at score 1 resolve by brand name")
}

func TestOverlapRatio(t *testing.T) {
	assert.InDelta(t, 1.0, OverlapRatio("ABCD", "DCBA"), 1e-9)
	assert.InDelta(t, 0.75, OverlapRatio("ABCX", "ABCD"), 1e-9)
	assert.InDelta(t, 0.0, OverlapRatio("", ""), 1e-9)
	assert.InDelta(t, 0.5, OverlapRatio("AABB", "AB"), 1e-9)
}

func TestUnidentifiedLabel(t *testing.T) {
	assert.Equal(t, "Unidentified: ORGANIC", UnidentifiedLabel([]string{"fresh organic", "milk"}, "bottle", 3))
	assert.Equal(t, "Unidentified bottle", UnidentifiedLabel([]string{"a b"}, "bottle", 3))
	assert.Equal(t, "Unidentified product", UnidentifiedLabel(nil, "unknown", 3))
	assert.Equal(t, "Unidentified product", UnidentifiedLabel(nil, "", 3))
	assert.Equal(t, "Unidentified: ABC", UnidentifiedLabel([]string{"ABC XYZ"}, "", 3), "first longest wins")
}

func TestDictionaryValidation(t *testing.T) {
	_, err := NewDictionary(nil, 3)
	require.Error(t, err)

	_, err = NewDictionary([]Brand{{Name: "!!"}}, 3)
	require.Error(t, err)

	_, err = NewDictionary([]Brand{{Name: "Pepsi"}, {Name: "PEPSI"}}, 3)
	require.Error(t, err)

	_, err = NewDictionary([]Brand{{Name: "Pepsi", Patterns: []string{"PE"}}}, 3)
	require.Error(t, err)

	d, err := NewDictionary([]Brand{{Name: "Zeta"}, {Name: "Alpha", Patterns: []string{"alpha", "ALP"}}}, 3)
	require.NoError(t, err)
	brands := d.Brands()
	require.Len(t, brands, 2)
	assert.Equal(t, "Alpha", brands[0].Name)
	assert.Equal(t, []string{"ALPHA", "ALP"}, brands[0].Patterns)
}

func TestLoadDictionaryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brands.yaml")
	require.NoError(t, os.WriteFile(path, []byte("brands:\n  - name: Acme\n    patterns: [ACM3]\n"), 0o600))
	d, err := LoadDictionary(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())

	_, err = LoadDictionary(filepath.Join(t.TempDir(), "missing.yaml"), 3)
	require.Error(t, err)

	def, err := LoadDictionary("", 3)
	require.NoError(t, err)
	assert.Positive(t, def.Len())

	_, err = ParseDictionary([]byte("brands: [unterminated"), 3)
	require.Error(t, err)
}

func TestMatcherConfigValidate(t *testing.T) {
	require.NoError(t, DefaultMatcherConfig().Validate())
	bad := DefaultMatcherConfig()
	bad.FuzzyScoreScale = 1
	require.Error(t, bad.Validate())
	bad = DefaultMatcherConfig()
	bad.FuzzyThreshold = 0
	require.Error(t, bad.Validate())
	bad = DefaultMatcherConfig()
	bad.JoinedScoreScale = 1
	require.Error(t, bad.Validate())

	_, err := NewMatcher(nil, DefaultMatcherConfig())
	require.Error(t, err)
}
