package extract

import (
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// Hadith field names.
const (
	FieldBook    = "book"
	FieldLink    = "link"
	FieldHadiths = "hadiths"
)

// HadithBook is one downloadable collection.
type HadithBook struct {
	Book string `json:"book"`
	Link string `json:"link"`
}

// HadithCollections walks the collection listing and returns, in listing
// order, the books published in lang. The first link wins for a book listed
// twice.
func HadithCollections(body []byte, lang string) ([]HadithBook, error) {
	if !gjson.ValidBytes(body) {
		return nil, resilience.Format(resilience.ReasonMalformed, eris.New("extract: hadith listing is not json"))
	}

	var books []HadithBook
	seen := map[string]bool{}
	gjson.ParseBytes(body).ForEach(func(_, group gjson.Result) bool {
		group.Get("collection").ForEach(func(_, entry gjson.Result) bool {
			if entry.Get("language").String() != lang {
				return true
			}
			book, link := entry.Get("book").String(), entry.Get("link").String()
			if book == "" || link == "" || seen[book] {
				return true
			}
			seen[book] = true
			books = append(books, HadithBook{Book: book, Link: link})
			return true
		})
		return true
	})
	return books, nil
}

// HadithLinks flattens books into the persisted {book: link} index.
func HadithLinks(books []HadithBook) map[string]string {
	out := make(map[string]string, len(books))
	for _, b := range books {
		out[b.Book] = b.Link
	}
	return out
}

// HadithBookID is the record name a book's collection is stored under.
func HadithBookID(book string) string {
	return "book_" + book
}

// HadithFragment wraps a downloaded collection body. The JSON is kept
// verbatim.
func HadithFragment(b HadithBook, body []byte) (model.Fragment, error) {
	if !gjson.ValidBytes(body) {
		return model.Fragment{}, resilience.Format(resilience.ReasonMalformed,
			eris.Errorf("extract: hadith book %q is not json", b.Book))
	}
	frag := model.NewFragment(HadithBookID(b.Book), SourceHadith)
	frag.Fields[FieldBook] = b.Book
	frag.Fields[FieldLink] = b.Link
	frag.Fields[FieldHadiths] = gjson.ParseBytes(body).Value()
	return frag, nil
}
