package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/islamic-data/internal/model"
)

// Name field names.
const (
	FieldTransliterationEng = "transliteration_eng"
	FieldTransliterationAr  = "transliteration_ar"
	FieldDescription        = "description"
	FieldMentions           = "mentions-from-quran-hadith"
	FieldSummary            = "summary"
)

// Section classes of a name detail page.
const (
	ClassNameMeaning   = "name-meaning"
	ClassNameSummary   = "summary"
	ClassNameMentions  = "column-section"
	ClassNameLongIntro = "second-section"
)

var (
	parenRe       = regexp.MustCompile(`[()]`)
	punctuationRe = regexp.MustCompile(`[();,.]`)
	arabicWordRe  = regexp.MustCompile(`[\x{0600}-\x{06FF}]+`)
)

// NameListing returns the English transliterations of the 99 names in page
// order.
func NameListing(doc *goquery.Document) []string {
	var names []string
	doc.Find(".transliteration").Each(func(_ int, s *goquery.Selection) {
		names = append(names, s.Text())
	})
	return names
}

// ArabicNames returns the Arabic names from the listing table. The cells
// arrive reversed, four per row, and the name is the second cell.
func ArabicNames(doc *goquery.Document) []string {
	var cells []string
	doc.Find("td.cb-arabic").Each(func(_ int, s *goquery.Selection) {
		cells = append(cells, strings.Trim(Reverse(s.Text()), "\n"))
	})
	var names []string
	for i := 1; i < len(cells); i += 4 {
		names = append(names, cells[i])
	}
	return names
}

// NameSlug maps an English name onto its detail page slug. Names starting
// with "d" have d replaced by a space and h by z before left-trimming, which
// is how the site spells those pages.
func NameSlug(name string) string {
	slug := strings.ReplaceAll(strings.ToLower(name), "'", "")
	if !strings.HasPrefix(slug, "d") {
		return slug
	}
	slug = strings.NewReplacer("d", " ", "h", "z").Replace(slug)
	return strings.TrimLeft(slug, " \t\n")
}

// NameListingFragment is the base fragment of the name at 1-based index.
func NameListingFragment(index int, name, arabic string) model.Fragment {
	frag := model.NewFragment(strconv.Itoa(index), SourceNameListing)
	frag.Fields[FieldName] = name
	frag.Fields[FieldTransliterationAr] = arabic
	return frag
}

// NameDetail extracts the meaning, description, mentions and long summary
// sections of a name's detail page.
func NameDetail(entityID string, doc *goquery.Document) model.Fragment {
	frag := model.NewFragment(entityID, SourceNameDetail)

	meaning := doc.Find("." + ClassNameMeaning).First().Text()
	frag.Fields[FieldTransliterationEng] = parenRe.ReplaceAllString(meaning, "")
	frag.Fields[FieldDescription] = joinTexts(doc.Find("." + ClassNameSummary))
	frag.Fields[FieldMentions] = joinTexts(doc.Find("." + ClassNameMentions))
	frag.Fields[FieldSummary] = LongestSummary(joinTexts(doc.Find("." + ClassNameLongIntro)))
	return frag
}

// LongestSummary keeps the longest line of text, counted in characters;
// the first wins a tie. Tokens holding both
// punctuation and Arabic letters arrive reversed; they are stripped of the
// punctuation and reversed back.
func LongestSummary(text string) string {
	var longest string
	longestLen := 0
	for _, line := range strings.Split(text, "\n") {
		if n := utf8.RuneCountInString(line); n > longestLen {
			longest, longestLen = line, n
		}
	}

	words := strings.Fields(longest)
	for i, w := range words {
		if punctuationRe.MatchString(w) && arabicWordRe.MatchString(w) {
			words[i] = Reverse(strings.Trim(w, "();,."))
		}
	}
	return strings.Join(words, " ")
}

func joinTexts(sel *goquery.Selection) string {
	return strings.Join(sel.Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	}), "")
}
