package pipeline

import (
	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/merge"
)

// SurahPlan merges the API listing with the translator page. Translator
// renderings must match the API verse count; only the anchor translator
// carries transliteration and Arabic text.
func SurahPlan(surahID string) merge.Plan {
	return merge.Plan{
		Category: CategorySurahs,
		Sources:  []string{extract.SourceSurahAPI, extract.SourceSurahTranslations},
		Alignments: map[string]merge.Alignment{
			extract.FieldVerses: {
				CountField: extract.FieldFullSurahEn,
				Anchor:     extract.AnchorTranslator,
				Parallel: map[string]string{
					"transliteration": extract.FieldFullSurahEn,
					"translation_ar":  extract.FieldFullSurahAr,
				},
				NumberField: extract.FieldVerseNumbers,
				NumberKey:   "verse",
				TextKey:     "translation_eng",
				IndexBase:   extract.SurahIndexBase(surahID),
			},
		},
	}
}

// NamePlan merges a name's listing row with its detail page.
func NamePlan() merge.Plan {
	return merge.Plan{
		Category: CategoryNames,
		Sources:  []string{extract.SourceNameListing, extract.SourceNameDetail},
	}
}

// ProphetPlan merges the index entry with the story page.
func ProphetPlan() merge.Plan {
	return merge.Plan{
		Category: CategoryProphets,
		Sources:  []string{extract.SourceProphetIndex, extract.SourceProphetStory},
	}
}

func singleSourcePlan(category, source string) merge.Plan {
	return merge.Plan{Category: category, Sources: []string{source}}
}
