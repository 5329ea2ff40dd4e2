// Package title holds the shared film-title normalization and similarity
// functions. The resolver's cache, the screening deduplicator and the
// duplicate-film merger all compare titles through this package; any drift
// between them reintroduces duplicate films.
package title

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritical marks so "Amélie" and "Amelie" normalize
// identically across sources.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a film title for identity comparison:
// case-fold, strip diacritics, drop a leading "the", strip punctuation,
// collapse whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	s = strings.Join(strings.Fields(b.String()), " ")
	s = strings.TrimPrefix(s, "the ")

	return strings.TrimSpace(s)
}

// StripEventPrefix removes an ALL-CAPS event prefix like
// "DRINK & DINE: " from a raw title, returning the candidate film title
// and whether a prefix was stripped. Prefixes are only stripped when the
// remainder is non-empty, so titles that legitimately start with a colon
// segment survive intact.
func StripEventPrefix(raw string) (string, bool) {
	idx := strings.Index(raw, ":")
	if idx <= 0 || idx == len(raw)-1 {
		return raw, false
	}

	prefix := raw[:idx]
	if !isEventPrefix(prefix) {
		return raw, false
	}

	candidate := strings.TrimSpace(raw[idx+1:])
	if candidate == "" {
		return raw, false
	}

	return candidate, true
}

// isEventPrefix reports whether the text before a colon looks like an
// event marker rather than part of the film title: all letters uppercase,
// at least two of them.
func isEventPrefix(s string) bool {
	letters := 0

	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}

		if unicode.IsLetter(r) {
			letters++
		}
	}

	return letters >= 2
}

// Trigrams returns the set of letter trigrams of a normalized string,
// padded the way pg_trgm pads: two leading spaces and one trailing.
func Trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})

	// Trigrams are windows of runes, not bytes, so multibyte titles
	// produce the same sets pg_trgm computes over characters.
	for _, word := range strings.Fields(s) {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}

	return set
}

// Similarity computes trigram similarity between two titles after
// normalization: the Jaccard ratio of their trigram sets. Matches the
// shape of pg_trgm's similarity() so in-process clustering and the
// database-side similarity backend agree.
func Similarity(a, b string) float64 {
	ta := Trigrams(Normalize(a))
	tb := Trigrams(Normalize(b))

	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0

	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}

	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}

	return float64(shared) / float64(union)
}
