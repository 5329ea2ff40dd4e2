package title

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases", in: "MOONLIGHT", want: "moonlight"},
		{name: "strips leading the", in: "The Godfather", want: "godfather"},
		{name: "keeps embedded the", in: "All The President's Men", want: "all the presidents men"},
		{name: "strips diacritics", in: "Amélie", want: "amelie"},
		{name: "strips punctuation", in: "When Harry Met Sally...", want: "when harry met sally"},
		{name: "collapses whitespace", in: "  Paris,   Texas ", want: "paris texas"},
		{name: "keeps digits", in: "2001: A Space Odyssey", want: "2001 a space odyssey"},
		{name: "empty input", in: "", want: ""},
		{name: "punctuation only", in: "...", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdentity(t *testing.T) {
	// Variant spellings of the same release must collapse to one key.
	variants := []string{"The Godfather", "GODFATHER", "Godfather!", " the godfather "}

	for _, v := range variants {
		assert.Equal(t, "godfather", Normalize(v), "variant %q", v)
	}
}

func TestStripEventPrefix(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     string
		stripped bool
	}{
		{
			name:     "all caps event prefix",
			in:       "DRINK & DINE: When Harry Met Sally...",
			want:     "When Harry Met Sally...",
			stripped: true,
		},
		{
			name:     "members prefix",
			in:       "MEMBERS PREVIEW: Aftersun",
			want:     "Aftersun",
			stripped: true,
		},
		{
			name:     "mixed case title with colon survives",
			in:       "Shin Godzilla: Resurgence",
			want:     "Shin Godzilla: Resurgence",
			stripped: false,
		},
		{
			name:     "numeric prefix survives",
			in:       "2001: A Space Odyssey",
			want:     "2001: A Space Odyssey",
			stripped: false,
		},
		{
			name:     "single letter prefix survives",
			in:       "M: The Vampire",
			want:     "M: The Vampire",
			stripped: false,
		},
		{
			name:     "no colon",
			in:       "Paris, Texas",
			want:     "Paris, Texas",
			stripped: false,
		},
		{
			name:     "trailing colon",
			in:       "WEIRD TITLE:",
			want:     "WEIRD TITLE:",
			stripped: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stripped := StripEventPrefix(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.stripped, stripped)
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Heat", "Heat"))
	assert.Equal(t, 1.0, Similarity("Amélie", "Amelie"), "diacritics normalize away")
	assert.Equal(t, 1.0, Similarity("The Seventh Seal", "Seventh Seal"), "leading the normalizes away")

	assert.Less(t, Similarity("Alien", "Blade Runner"), 0.2)

	assert.Equal(t, 0.0, Similarity("", "Heat"))
	assert.Equal(t, 0.0, Similarity("...", "Heat"))
}

func TestSimilaritySymmetric(t *testing.T) {
	a, b := "Batman Returns", "Batman Forever"
	assert.Equal(t, Similarity(a, b), Similarity(b, a))
}

func TestTrigramsMultibyte(t *testing.T) {
	// Cyrillic letters are two bytes each; trigrams must still be
	// three-character windows.
	got := Trigrams("кино")

	want := []string{"  к", " ки", "кин", "ино", "но "}
	assert.Len(t, got, len(want))

	for _, tri := range want {
		_, ok := got[tri]
		assert.True(t, ok, "missing trigram %q", tri)
	}
}

func TestSimilarityMultibyte(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Сталкер", "Сталкер!"))
	assert.Less(t, Similarity("Сталкер", "Зеркало"), 0.2)
}
