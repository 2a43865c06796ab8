// Package extract turns fetched documents into single-source Fragments.
// Each category owns one file of parsing rules; none of them touch the
// network.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Source names. A Fragment's Source is one of these.
const (
	SourceSurahAPI          = "surah-api"
	SourceSurahTranslations = "surah-translations"
	SourceNameListing       = "names-listing"
	SourceNameDetail        = "names-detail"
	SourceProphetIndex      = "prophets-index"
	SourceProphetStory      = "prophets-story"
	SourceQibla             = "qibla"
	SourceManners           = "manners"
	SourceHadith            = "hadith"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Reverse returns s with its rune sequence reversed. Fields the upstream
// sources deliver reversed are stored this way.
func Reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// FoldASCII strips combining marks so "Al-Fātiḥah" becomes "Al-Fatihah".
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ListingName is the hyphenated ASCII display name used by surah listings.
func ListingName(name string) string {
	return strings.ReplaceAll(FoldASCII(name), " ", "-")
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// splitNonEmpty splits s on newlines, drops blank lines and removes
// non-breaking spaces.
func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.ReplaceAll(line, "\u00a0", "")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
