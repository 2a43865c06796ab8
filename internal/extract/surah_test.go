package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

const surahBody = `{
	"id": 1,
	"surah_name": "Al-Fatihah",
	"surah_name_ar": "ةحتافلا",
	"translation": "The Opening",
	"type": "meccan",
	"total_verses": 2,
	"description": "The opening chapter.",
	"verses": {
		"1": {"content": "هللا مسب", "transliteration": "Bismillah"},
		"2": {"content": "هلل دمحلا", "transliteration": "Alhamdu lillah"}
	}
}`

func TestSurahAPI(t *testing.T) {
	frag, err := SurahAPI([]byte(surahBody))
	require.NoError(t, err)

	assert.Equal(t, "1", frag.EntityID)
	assert.Equal(t, SourceSurahAPI, frag.Source)
	assert.Equal(t, "Al-Fatihah", frag.Fields[FieldSurahName])
	assert.Equal(t, "الفاتحة", frag.Fields[FieldSurahNameAr])
	assert.Equal(t, int64(2), frag.Fields[FieldTotalVerses])
	assert.Equal(t, []string{"بسم الله", "الحمد لله"}, frag.Fields[FieldFullSurahAr])
	assert.Equal(t, []string{"Bismillah", "Alhamdu lillah"}, frag.Fields[FieldFullSurahEn])
}

func TestSurahAPI_Malformed(t *testing.T) {
	_, err := SurahAPI([]byte("<html>rate limited</html>"))
	require.Error(t, err)
	assert.Equal(t, resilience.KindFormat, resilience.KindOf(err))

	_, err = SurahAPI([]byte(`{"surah_name":"x"}`))
	require.Error(t, err)
}

func TestTranslationIndex(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<a href="https://myislam.org/what-is-islam/">Islam</a>
		<a href="https://myislam.org/salat-guide/">Salat</a>
		<a href="https://myislam.org/surah-fatiha/">1</a>
		<a href="https://myislam.org/surah-baqarah/">2</a>
		<a class="nav" href="https://myislam.org/surah-skip/">skip</a>
		<a href="https://myislam.org/surah-al-imran/">3</a>
		<a href="https://myislam.org/donate/">Donate</a>
		<a href="https://myislam.org/translations/">Translations</a>
		<a href="https://myislam.org/privacy/">Privacy</a>
	</body></html>`)

	got := TranslationIndex(doc)
	assert.Equal(t, []string{"surah-fatiha", "surah-baqarah", "surah-al-imran"}, got)
}

func TestTranslationIndex_TooShort(t *testing.T) {
	doc := mustDoc(t, `<a href="https://x/surah-a/">a</a>`)
	assert.Nil(t, TranslationIndex(doc))
}

func TestSurahTranslations(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<a class="ayat-number-style">1</a>
		<a class="ayat-number-style">2</a>
		<div class="translation-style translation-1">Yusuf Ali: In the name of Allah</div>
		<div class="translation-style translation-1">Sahih International: In the name of Allah,
the Merciful</div>
		<div class="translation-style translation-1">Unknown Person: ignored</div>
		<div class="translation-style translation-2">Yusuf Ali: Praise be to Allah</div>
		<div class="translation-style translation-2">Sahih International: All praise is due to Allah</div>
		<div class="translation-style translation-2">Pickthall: Praise be to Allah, Lord</div>
	</body></html>`)

	frag := SurahTranslations("1", doc)
	assert.Equal(t, SourceSurahTranslations, frag.Source)
	assert.Equal(t, []string{"1", "2"}, frag.Fields[FieldVerseNumbers])

	variants, ok := frag.Fields[FieldVerses].(model.Variants)
	require.True(t, ok)
	assert.Equal(t, []string{"In the name of Allah", "Praise be to Allah"}, variants["Yusuf Ali"])
	assert.Equal(t, []string{"In the name of Allah, the Merciful", "All praise is due to Allah"}, variants[AnchorTranslator])
	assert.Equal(t, []string{"Praise be to Allah, Lord"}, variants["Pickthall"])
	assert.NotContains(t, variants, "Unknown Person")
}

func TestSurahIndexBase(t *testing.T) {
	assert.Equal(t, 1, SurahIndexBase("1"))
	assert.Equal(t, 0, SurahIndexBase("2"))
	assert.Equal(t, 0, SurahIndexBase("114"))
	assert.Equal(t, 0, SurahIndexBase("x"))
}
