package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/islamic-data/internal/resilience"
)

var factBoilerplateRe = regexp.MustCompile(`\((Religion > Islam )\)`)

// CleanFact strips the category boilerplate the facts generator appends.
func CleanFact(raw string) string {
	return strings.TrimSpace(factBoilerplateRe.ReplaceAllString(raw, ""))
}

// Fact returns the cleaned text of the first h2 on a facts page.
func Fact(doc *goquery.Document) (string, error) {
	h2 := doc.Find("h2").First()
	if h2.Length() == 0 {
		return "", resilience.Format(resilience.ReasonMalformed, eris.New("extract: facts page has no h2"))
	}
	fact := CleanFact(h2.Text())
	if fact == "" {
		return "", resilience.Format(resilience.ReasonMalformed, eris.New("extract: facts page h2 is empty"))
	}
	return fact, nil
}
