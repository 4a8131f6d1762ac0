package brand

import (
	"fmt"
	"math"
	"strings"
)

// Match is the best brand hit for one set of texts.
type Match struct {
	Brand       string  `json:"brand"`
	Pattern     string  `json:"pattern"`
	Score       float64 `json:"score"`
	Text        string  `json:"text"`
	Canonical   bool    `json:"canonical"`
	Corrected   bool    `json:"corrected"`
	Approximate bool    `json:"approximate"`
	Joined      bool    `json:"joined"` // pattern spans a word gap in the text

	textIndex int
}

// MatcherConfig tunes the matcher.
type MatcherConfig struct {
	UseConfusables     bool    // try digit-to-letter correction when it scores higher
	EnableFuzzy        bool    // fall back to character-overlap matching
	FuzzyThreshold     float64 // minimum overlap ratio for an approximate hit (default: 0.6)
	FuzzyMinWordLength int     // words shorter than this never match approximately (default: 4)
	FuzzyScoreScale    float64 // multiplier applied to approximate scores, below 1 (default: 0.8)
	JoinedScoreScale   float64 // multiplier for hits that span whole words across a gap, below 1 (default: 0.9)
	MinTokenLength     int     // shortest token usable for an unidentified label (default: 3)
}

// DefaultMatcherConfig returns the default matcher settings.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		UseConfusables:     true,
		EnableFuzzy:        true,
		FuzzyThreshold:     0.6,
		FuzzyMinWordLength: 4,
		FuzzyScoreScale:    0.8,
		JoinedScoreScale:   0.9,
		MinTokenLength:     3,
	}
}

// Validate checks matcher settings.
func (c MatcherConfig) Validate() error {
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy threshold must be in (0,1], got %f", c.FuzzyThreshold)
	}
	if c.FuzzyScoreScale <= 0 || c.FuzzyScoreScale >= 1 {
		return fmt.Errorf("fuzzy score scale must be in (0,1), got %f", c.FuzzyScoreScale)
	}
	if c.JoinedScoreScale <= 0 || c.JoinedScoreScale >= 1 {
		return fmt.Errorf("joined score scale must be in (0,1), got %f", c.JoinedScoreScale)
	}
	if c.FuzzyMinWordLength < 1 {
		return fmt.Errorf("fuzzy min word length must be positive, got %d", c.FuzzyMinWordLength)
	}
	if c.MinTokenLength < 1 {
		return fmt.Errorf("min token length must be positive, got %d", c.MinTokenLength)
	}
	return nil
}

// Matcher finds brands in normalized OCR text.
type Matcher struct {
	dict *Dictionary
	cfg  MatcherConfig
}

// NewMatcher creates a matcher over dict.
func NewMatcher(dict *Dictionary, cfg MatcherConfig) (*Matcher, error) {
	if dict == nil || dict.Len() == 0 {
		return nil, fmt.Errorf("matcher requires a non-empty dictionary")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{dict: dict, cfg: cfg}, nil
}

// Dictionary returns the matcher's dictionary.
func (m *Matcher) Dictionary() *Dictionary { return m.dict }

// Match returns the single best brand across texts, or nil when nothing
// matches. Patterns are looked up in the normalized text first. A pattern may
// also match across word gaps when it starts and ends on word boundaries, at
// a reduced score. Exact hits of either kind take precedence over
// approximate ones.
func (m *Matcher) Match(texts []string) *Match {
	var best *Match
	for i, raw := range texts {
		text := Normalize(raw)
		if text == "" {
			continue
		}
		best = better(best, m.exact(text, text, i, false))
		if m.cfg.UseConfusables {
			if corrected := CorrectConfusables(text); corrected != text {
				best = better(best, m.exact(corrected, text, i, true))
			}
		}
	}
	if best != nil || !m.cfg.EnableFuzzy {
		return best
	}

	for i, raw := range texts {
		text := Normalize(raw)
		for _, word := range Tokens(text) {
			if len(word) < m.cfg.FuzzyMinWordLength {
				continue
			}
			best = better(best, m.approximate(word, text, i, false))
			if m.cfg.UseConfusables {
				if corrected := CorrectConfusables(word); corrected != word {
					best = better(best, m.approximate(corrected, text, i, true))
				}
			}
		}
	}
	return best
}

// exact returns the best pattern hit in normalized, which is text or its
// confusable-corrected form.
func (m *Matcher) exact(normalized, text string, idx int, corrected bool) *Match {
	compact, starts, ends := wordBounds(normalized)
	var best *Match
	for _, e := range m.dict.entries {
		for _, p := range e.patterns {
			joined := false
			switch {
			case p.within(normalized):
			case containsAligned(compact, p.text, starts, ends):
				joined = true
			default:
				continue
			}
			score := patternScore(p.text, e.canonical)
			if joined {
				score *= m.cfg.JoinedScoreScale
			}
			best = better(best, &Match{
				Brand:     e.name,
				Pattern:   p.text,
				Score:     score,
				Text:      text,
				Canonical: p.canonical,
				Corrected: corrected,
				Joined:    joined,
				textIndex: idx,
			})
			if !joined {
				// Patterns are sorted best first, nothing later in this entry scores higher.
				break
			}
		}
	}
	return best
}

// wordBounds returns normalized without spaces together with the compact
// offsets at which words start and end.
func wordBounds(normalized string) (string, map[int]bool, map[int]bool) {
	starts, ends := map[int]bool{}, map[int]bool{}
	var b strings.Builder
	for _, tok := range Tokens(normalized) {
		starts[b.Len()] = true
		b.WriteString(tok)
		ends[b.Len()] = true
	}
	return b.String(), starts, ends
}

// containsAligned reports whether needle occurs in compact starting at a
// word start and ending at a word end.
func containsAligned(compact, needle string, starts, ends map[int]bool) bool {
	for from := 0; from+len(needle) <= len(compact); {
		i := strings.Index(compact[from:], needle)
		if i < 0 {
			return false
		}
		at := from + i
		if starts[at] && ends[at+len(needle)] {
			return true
		}
		from = at + 1
	}
	return false
}

func (m *Matcher) approximate(word, text string, idx int, corrected bool) *Match {
	var best *Match
	for _, e := range m.dict.entries {
		for _, p := range e.patterns {
			if len(p.text) < m.cfg.FuzzyMinWordLength {
				continue
			}
			ratio := OverlapRatio(word, p.text)
			if ratio < m.cfg.FuzzyThreshold {
				continue
			}
			best = better(best, &Match{
				Brand:       e.name,
				Pattern:     p.text,
				Score:       ratio * patternScore(p.text, e.canonical) * m.cfg.FuzzyScoreScale,
				Text:        text,
				Canonical:   p.canonical,
				Corrected:   corrected,
				Approximate: true,
				textIndex:   idx,
			})
		}
	}
	return best
}

func patternScore(pattern, canonical string) float64 {
	if canonical == "" {
		return 0
	}
	return math.Min(1, float64(len(pattern))/float64(len(canonical)))
}

// better returns whichever of a and b should win. The order is deterministic:
// score, then in-word over joined hits, then canonical pattern, then
// uncorrected text, then brand name, then earlier text.
func better(a, b *Match) *Match {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	const eps = 1e-12
	if d := a.Score - b.Score; d > eps {
		return a
	} else if d < -eps {
		return b
	}
	if a.Joined != b.Joined {
		if !a.Joined {
			return a
		}
		return b
	}
	if a.Canonical != b.Canonical {
		if a.Canonical {
			return a
		}
		return b
	}
	if a.Corrected != b.Corrected {
		if !a.Corrected {
			return a
		}
		return b
	}
	if a.Brand != b.Brand {
		if a.Brand < b.Brand {
			return a
		}
		return b
	}
	if b.textIndex < a.textIndex {
		return b
	}
	return a
}

// OverlapRatio is the multiset character overlap between a and b divided by
// the longer length. It ignores character order.
func OverlapRatio(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(a); i++ {
		counts[a[i]]++
	}
	common := 0
	for i := 0; i < len(b); i++ {
		if counts[b[i]] > 0 {
			counts[b[i]]--
			common++
		}
	}
	return float64(common) / float64(longest)
}

// UnidentifiedLabel builds the label used when no brand matched: the longest
// token across texts (first wins on ties), or a placeholder naming the
// detector class when no token reaches minTokenLength.
func UnidentifiedLabel(texts []string, class string, minTokenLength int) string {
	longest := ""
	for _, raw := range texts {
		for _, tok := range Tokens(Normalize(raw)) {
			if len(tok) >= minTokenLength && len(tok) > len(longest) {
				longest = tok
			}
		}
	}
	if longest != "" {
		return "Unidentified: " + longest
	}
	if class == "" || class == "unknown" {
		return "Unidentified product"
	}
	return "Unidentified " + class
}
