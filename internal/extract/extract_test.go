package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestReverse(t *testing.T) {
	assert.Equal(t, "", Reverse(""))
	assert.Equal(t, "cba", Reverse("abc"))
	assert.Equal(t, "ةحتافلا", Reverse("الفاتحة"))
	assert.Equal(t, "الفاتحة", Reverse(Reverse("الفاتحة")))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Yusuf Ali", TitleCase("yusuf ali"))
	assert.Equal(t, "Dhul-Kifl", TitleCase("dhul-kifl"))
}

func TestListingName(t *testing.T) {
	assert.Equal(t, "Al-Fatihah", ListingName("Al-Fātiḥah"))
	assert.Equal(t, "Al-Baqarah", ListingName("Al Baqarah"))
}

func TestSplitNonEmpty(t *testing.T) {
	got := splitNonEmpty("a\n\n  \nb\u00a0c\n")
	assert.Equal(t, []string{"a", "bc"}, got)
}
