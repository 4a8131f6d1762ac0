package brand

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed brands.yaml
var defaultBrandsYAML []byte

// DefaultMinPatternLength rejects patterns too short to be specific.
const DefaultMinPatternLength = 3

// Brand is one dictionary entry as written in YAML.
type Brand struct {
	Name     string   `yaml:"name" json:"name"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

type dictionaryFile struct {
	Brands []Brand `yaml:"brands"`
}

type pattern struct {
	text      string // compact normalized form
	spaced    []string // normalized spellings with word gaps kept
	canonical bool
}

// within reports whether p occurs in normalized without spanning a word gap
// that the pattern itself does not have.
func (p pattern) within(normalized string) bool {
	if strings.Contains(normalized, p.text) {
		return true
	}
	for _, s := range p.spaced {
		if strings.Contains(normalized, s) {
			return true
		}
	}
	return false
}

type entry struct {
	name      string
	canonical string // compact normalized brand name
	patterns  []pattern
}

// Dictionary maps canonical brand names to their known substring patterns.
// It is immutable once built and safe for concurrent use.
type Dictionary struct {
	entries []entry
}

// NewDictionary validates brands and builds an immutable dictionary.
// The canonical spelling of every brand is always one of its patterns.
func NewDictionary(brands []Brand, minPatternLength int) (*Dictionary, error) {
	if len(brands) == 0 {
		return nil, errors.New("brand dictionary is empty")
	}
	if minPatternLength <= 0 {
		minPatternLength = DefaultMinPatternLength
	}

	seen := make(map[string]bool, len(brands))
	entries := make([]entry, 0, len(brands))
	for _, b := range brands {
		spacedName := Normalize(b.Name)
		canonical := Compact(spacedName)
		if canonical == "" {
			return nil, fmt.Errorf("brand %q has no usable characters", b.Name)
		}
		if seen[canonical] {
			return nil, fmt.Errorf("duplicate brand %q", b.Name)
		}
		seen[canonical] = true

		e := entry{name: b.Name, canonical: canonical}
		e.patterns = append(e.patterns, pattern{text: canonical, spaced: []string{spacedName}, canonical: true})
		dup := map[string]int{canonical: 0}
		for _, raw := range b.Patterns {
			spaced := Normalize(raw)
			p := Compact(spaced)
			if i, ok := dup[p]; ok {
				// "7 UP" and "7UP" share one pattern but both spellings are in-word hits.
				if !slices.Contains(e.patterns[i].spaced, spaced) {
					e.patterns[i].spaced = append(e.patterns[i].spaced, spaced)
				}
				continue
			}
			if len(p) < minPatternLength {
				return nil, fmt.Errorf("brand %q: pattern %q shorter than %d characters", b.Name, raw, minPatternLength)
			}
			dup[p] = len(e.patterns)
			e.patterns = append(e.patterns, pattern{text: p, spaced: []string{spaced}})
		}
		// Highest score first, canonical first among equal scores, so the
		// first hit in an entry is its best one. Patterns longer than the
		// brand name score the same as the name itself.
		sort.SliceStable(e.patterns, func(i, j int) bool {
			a, b := e.patterns[i], e.patterns[j]
			sa, sb := min(len(a.text), len(canonical)), min(len(b.text), len(canonical))
			if sa != sb {
				return sa > sb
			}
			if a.canonical != b.canonical {
				return a.canonical
			}
			return len(a.text) > len(b.text)
		})
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return &Dictionary{entries: entries}, nil
}

// ParseDictionary builds a dictionary from YAML bytes.
func ParseDictionary(data []byte, minPatternLength int) (*Dictionary, error) {
	var f dictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse brand dictionary: %w", err)
	}
	return NewDictionary(f.Brands, minPatternLength)
}

// LoadDictionary reads a YAML dictionary from path. An empty path yields the
// built-in dictionary.
func LoadDictionary(path string, minPatternLength int) (*Dictionary, error) {
	if path == "" {
		return DefaultDictionary()
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read brand dictionary %s: %w", path, err)
	}
	return ParseDictionary(data, minPatternLength)
}

var (
	defaultDict     *Dictionary
	defaultDictErr  error
	defaultDictOnce sync.Once
)

// DefaultDictionary returns the built-in dictionary, parsed once per process.
func DefaultDictionary() (*Dictionary, error) {
	defaultDictOnce.Do(func() {
		defaultDict, defaultDictErr = ParseDictionary(defaultBrandsYAML, DefaultMinPatternLength)
	})
	return defaultDict, defaultDictErr
}

// Len returns the number of brands.
func (d *Dictionary) Len() int { return len(d.entries) }

// Brands returns a copy of the dictionary contents in name order.
func (d *Dictionary) Brands() []Brand {
	out := make([]Brand, 0, len(d.entries))
	for _, e := range d.entries {
		b := Brand{Name: e.name}
		for _, p := range e.patterns {
			b.Patterns = append(b.Patterns, p.text)
		}
		out = append(out, b)
	}
	return out
}
