package extract

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// Surah field names.
const (
	FieldSurahName    = "surah_name"
	FieldSurahNameAr  = "surah_name_ar"
	FieldFullSurahAr  = "full_surah_ar"
	FieldFullSurahEn  = "full_surah_en"
	FieldTotalVerses  = "total_verses"
	FieldVerseNumbers = "verse_numbers"
	FieldVerses       = "verses"
)

// AnchorTranslator is the only translator whose page rows align with the
// API transliteration and Arabic text.
const AnchorTranslator = "Sahih International"

// Translators are the renderings scraped from the transliteration pages, in
// page order.
var Translators = []string{
	"Yusuf Ali",
	"Abul Ala Maududi",
	"Muhsin Khan",
	"Pickthall",
	"Dr. Ghali",
	"Abdul Haleem",
	AnchorTranslator,
}

var surahLinkRe = regexp.MustCompile(`at|surah-\w+-?\w+?`)

// SurahAPI builds the authoritative fragment from the surah API JSON. The
// Arabic name and verse content arrive reversed and are reversed back.
func SurahAPI(body []byte) (model.Fragment, error) {
	if !gjson.ValidBytes(body) {
		return model.Fragment{}, resilience.Format(resilience.ReasonMalformed, eris.New("extract: surah api body is not json"))
	}
	doc := gjson.ParseBytes(body)
	id := doc.Get("id")
	if !id.Exists() {
		return model.Fragment{}, resilience.Format(resilience.ReasonMalformed, eris.New("extract: surah api body has no id"))
	}

	frag := model.NewFragment(id.String(), SourceSurahAPI)
	frag.Fields["id"] = id.Int()
	frag.Fields[FieldSurahName] = doc.Get("surah_name").String()
	frag.Fields[FieldSurahNameAr] = Reverse(doc.Get("surah_name_ar").String())
	frag.Fields["translation"] = doc.Get("translation").String()
	frag.Fields["type"] = doc.Get("type").String()
	frag.Fields[FieldTotalVerses] = doc.Get("total_verses").Int()
	frag.Fields["description"] = doc.Get("description").String()

	var arabic, transliteration []string
	doc.Get("verses").ForEach(func(_, verse gjson.Result) bool {
		transliteration = append(transliteration, verse.Get("transliteration").String())
		arabic = append(arabic, Reverse(verse.Get("content").String()))
		return true
	})
	frag.Fields[FieldFullSurahAr] = arabic
	frag.Fields[FieldFullSurahEn] = transliteration
	return frag, nil
}

// TranslationIndex returns the per-surah page slugs from the transliteration
// index. Element i is the page for surah i+1. The first and last two links
// are navigation and are dropped.
func TranslationIndex(doc *goquery.Document) []string {
	var slugs []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if len(a.Nodes) == 0 || len(a.Nodes[0].Attr) != 1 {
			return
		}
		href, _ := a.Attr("href")
		if !surahLinkRe.MatchString(href) {
			return
		}
		slugs = append(slugs, path.Base(strings.TrimSuffix(href, "/")))
	})
	if len(slugs) <= 4 {
		return nil
	}
	return slugs[2 : len(slugs)-2]
}

// SurahTranslations groups the "Translator: text" rows of a surah page into
// one Variants entry per known translator. Rows from unknown translators are
// ignored; the verse count check happens at merge time.
func SurahTranslations(entityID string, doc *goquery.Document) model.Fragment {
	var numbers []string
	doc.Find("a.ayat-number-style").Each(func(_ int, s *goquery.Selection) {
		numbers = append(numbers, strings.TrimSpace(s.Text()))
	})

	variants := model.Variants{}
	for i := 1; i <= len(numbers); i++ {
		doc.Find(fmt.Sprintf("div.translation-style.translation-%d", i)).Each(func(_ int, s *goquery.Selection) {
			row := strings.ReplaceAll(s.Text(), "\n", " ")
			author, text, ok := strings.Cut(row, ":")
			if !ok {
				return
			}
			author = strings.TrimSpace(author)
			for _, t := range Translators {
				if author == t {
					variants[t] = append(variants[t], strings.TrimSpace(text))
					break
				}
			}
		})
	}

	frag := model.NewFragment(entityID, SourceSurahTranslations)
	frag.Fields[FieldVerseNumbers] = numbers
	frag.Fields[FieldVerses] = variants
	return frag
}

// SurahIndexBase is the first verse key of a surah: the opening surah counts
// its basmala as verse 1, every other surah starts at 0.
func SurahIndexBase(surahID string) int {
	if n, err := strconv.Atoi(surahID); err == nil && n == 1 {
		return 1
	}
	return 0
}
