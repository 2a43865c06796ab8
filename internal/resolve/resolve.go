// Package resolve fuzzy-matches free-text queries against known names.
package resolve

import (
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNoCandidates is returned when there is nothing to match against.
var ErrNoCandidates = eris.New("resolve: no candidates")

// Match is the best candidate for a query. There is no score floor: callers
// that need confidence must check Score themselves.
type Match struct {
	// Candidate is the matched candidate as given.
	Candidate string `json:"candidate"`
	// Display is Candidate upper-cased when every candidate is upper-case,
	// title-cased otherwise. Downstream lookups keyed by display casing use it.
	Display string `json:"display"`
	// Key is the map key of the candidate for ResolveKeys, "" otherwise.
	Key string `json:"key,omitempty"`
	// Index is the candidate's position in the (key-sorted) candidate list.
	Index int `json:"index"`
	// Score is the similarity ratio in [0, 100].
	Score float64 `json:"score"`
}

// Ratio is the case-insensitive indel similarity of a and b:
// 100 * 2 * lcs / (len(a) + len(b)) over runes, where lcs is the longest
// common subsequence. Two empty strings score 100.
func Ratio(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}
	lcs := matchr.LongestCommonSubsequence(a, b)
	return 100 * float64(2*lcs) / float64(total)
}

// Resolve returns the highest-scoring candidate for query. Ties go to the
// earliest candidate.
func Resolve(query string, candidates []string) (Match, error) {
	if len(candidates) == 0 {
		return Match{}, ErrNoCandidates
	}

	best := Match{Index: -1, Score: -1}
	for i, c := range candidates {
		if s := Ratio(query, c); s > best.Score {
			best = Match{Candidate: c, Index: i, Score: s}
		}
	}
	best.Display = display(best.Candidate, candidates)
	return best, nil
}

// ResolveKeys resolves query against the values of m and reports the key of
// the winning value. Keys are visited in sorted order so ties are stable.
func ResolveKeys(query string, m map[string]string) (Match, error) {
	if len(m) == 0 {
		return Match{}, ErrNoCandidates
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = m[k]
	}
	match, err := Resolve(query, values)
	if err != nil {
		return Match{}, err
	}
	match.Key = keys[match.Index]
	return match, nil
}

func display(s string, candidates []string) string {
	for _, c := range candidates {
		if !isUpper(c) {
			return cases.Title(language.Und).String(strings.ToLower(s))
		}
	}
	return strings.ToUpper(s)
}

// isUpper reports whether s has at least one cased letter and no
// lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
