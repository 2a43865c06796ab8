package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameListing(t *testing.T) {
	doc := mustDoc(t, `<div><span class="transliteration">Ar-Rahman</span><span class="transliteration">Dhul-Jalali Wal-Ikram</span></div>`)
	assert.Equal(t, []string{"Ar-Rahman", "Dhul-Jalali Wal-Ikram"}, NameListing(doc))
}

func TestArabicNames(t *testing.T) {
	doc := mustDoc(t, `<table>
<tr><td class="cb-arabic">1</td><td class="cb-arabic">نمحرلا</td><td class="cb-arabic">x</td><td class="cb-arabic">y</td></tr>
<tr><td class="cb-arabic">2</td><td class="cb-arabic">ميحرلا</td><td class="cb-arabic">x</td><td class="cb-arabic">y</td></tr>
</table>`)
	assert.Equal(t, []string{"الرحمن", "الرحيم"}, ArabicNames(doc))
}

func TestNameSlug(t *testing.T) {
	assert.Equal(t, "ar-rahman", NameSlug("Ar-Rahman"))
	assert.Equal(t, "al-muizz", NameSlug("Al-Mu'izz"))
	assert.Equal(t, "zul-jalali wal-ikram", NameSlug("Dhul-Jalali Wal-Ikram"))
}

func TestNameListingFragment(t *testing.T) {
	frag := NameListingFragment(3, "Al-Malik", "الملك")
	assert.Equal(t, "3", frag.EntityID)
	assert.Equal(t, SourceNameListing, frag.Source)
	assert.Equal(t, "Al-Malik", frag.Fields[FieldName])
	assert.Equal(t, "الملك", frag.Fields[FieldTransliterationAr])
}

func TestNameDetail(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div class="name-meaning">(The Most Merciful)</div>
<div class="summary">Part one. </div><div class="summary">Part two.</div>
<div class="column-section">Mentioned in Al-Fatihah.</div>
<div class="second-section">short
This is the longest line of the long-form summary (.نمحرلا) text
mid</div>
</body></html>`)

	frag := NameDetail("1", doc)
	assert.Equal(t, SourceNameDetail, frag.Source)
	assert.Equal(t, "The Most Merciful", frag.Fields[FieldTransliterationEng])
	assert.Equal(t, "Part one. Part two.", frag.Fields[FieldDescription])
	assert.Equal(t, "Mentioned in Al-Fatihah.", frag.Fields[FieldMentions])
	assert.Equal(t, "This is the longest line of the long-form summary الرحمن text", frag.Fields[FieldSummary])
}

func TestLongestSummary_LeavesPlainTokens(t *testing.T) {
	assert.Equal(t, "plain (words), kept.", LongestSummary("a\nplain (words), kept."))
}

func TestLongestSummary_CountsCharactersNotBytes(t *testing.T) {
	got := LongestSummary("short ascii line here ok\nالرحمن الرحيم.")
	assert.Equal(t, "short ascii line here ok", got)

	got = LongestSummary("ab\nالرحمن الرحيم.")
	assert.Equal(t, "الرحمن ميحرلا", got)
}
