package extract

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/islamic-data/internal/model"
)

// Manner field names.
const (
	FieldManner = "manner"
	FieldVerse  = "verse"
)

// Manner is one good-manners entry with its verse reference.
type Manner struct {
	Manner string `json:"manner"`
	Verse  string `json:"verse"`
}

// Manners parses the good-manners list page. List items that start with a
// letter are entries except for the first two, which are navigation.
func Manners(doc *goquery.Document) []Manner {
	var items []string
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		r, _ := utf8.DecodeRuneInString(text)
		if text != "" && unicode.IsLetter(r) {
			items = append(items, text)
		}
	})
	if len(items) <= 2 {
		return nil
	}

	out := make([]Manner, 0, len(items)-2)
	for _, item := range items[2:] {
		manner, verse, _ := strings.Cut(item, "(")
		out = append(out, Manner{
			Manner: strings.TrimRightFunc(manner, unicode.IsSpace),
			Verse:  strings.Trim(verse, ")"),
		})
	}
	return out
}

// MannerFragment is the fragment for the manner at 1-based index.
func MannerFragment(index int, m Manner) model.Fragment {
	frag := model.NewFragment(strconv.Itoa(index), SourceManners)
	frag.Fields[FieldManner] = m.Manner
	frag.Fields[FieldVerse] = m.Verse
	return frag
}
