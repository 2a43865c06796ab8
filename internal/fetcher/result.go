package fetcher

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/islamic-data/internal/resilience"
)

// Result is a successful fetch. Mismatch is set when the declared content
// type differs from what the request expected; Body then holds raw text.
type Result struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Mismatch    bool
}

// Text returns the body as a string.
func (r *Result) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v. A decode failure is a format error.
func (r *Result) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		reason := resilience.ReasonMalformed
		if r.Mismatch {
			reason = resilience.ReasonContentTypeMismatch
		}
		return resilience.Format(reason, eris.Wrapf(err, "fetcher: decode json from %s", r.URL))
	}
	return nil
}

// Document parses the body as HTML.
func (r *Result) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, resilience.Format(resilience.ReasonMalformed, eris.Wrapf(err, "fetcher: parse html from %s", r.URL))
	}
	return doc, nil
}

// DecodeJSON decodes the body of r into a new T.
func DecodeJSON[T any](r *Result) (*T, error) {
	var v T
	if err := r.JSON(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func contentTypeMatches(expect Expect, contentType string) bool {
	ct := strings.ToLower(contentType)
	switch expect {
	case ExpectJSON:
		return strings.Contains(ct, "json")
	case ExpectHTML:
		return strings.Contains(ct, "html")
	default:
		return true
	}
}
