// Package brand turns noisy OCR strings into comparable tokens and matches
// them against a read-only dictionary of retail brands.
package brand

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldMarks decomposes compatibility characters and drops combining marks so
// "Nestlé" and "ＮＥＳＴＬＥ" both become plain Latin letters.
var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Normalize upper-cases raw, keeps only A-Z, 0-9 and single spaces, and trims.
// Whitespace and punctuation act as word separators; every other rune is
// dropped. Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(raw string) string {
	folded, _, err := transform.String(foldMarks, raw)
	if err != nil {
		folded = raw
	}
	folded = strings.ToUpper(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// UsableLength counts the letters and digits in a normalized string.
func UsableLength(normalized string) int {
	n := 0
	for i := 0; i < len(normalized); i++ {
		if normalized[i] != ' ' {
			n++
		}
	}
	return n
}

// Compact removes the word separators from a normalized string.
func Compact(normalized string) string {
	return strings.ReplaceAll(normalized, " ", "")
}

// Tokens splits a normalized string into words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// confusables maps digits commonly misread by OCR to the letter they resemble.
var confusables = map[byte]byte{
	'0': 'O',
	'1': 'I',
	'2': 'Z',
	'3': 'E',
	'4': 'A',
	'5': 'S',
	'6': 'G',
	'7': 'T',
	'8': 'B',
}

// CorrectConfusables rewrites confusable digits in a normalized string as
// letters. The input is left untouched; callers keep it for audit.
func CorrectConfusables(normalized string) string {
	out := []byte(normalized)
	changed := false
	for i, c := range out {
		if r, ok := confusables[c]; ok {
			out[i] = r
			changed = true
		}
	}
	if !changed {
		return normalized
	}
	return string(out)
}
