package extract

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/islamic-data/internal/resilience"
)

// TotalSurahs is added to the statistics the API reports.
const TotalSurahs = 114

// Stat is one labelled Quran statistic.
type Stat struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Stats parses the statistics object, adds the surah total, title-cases
// the snake_case keys and sorts ascending by value.
func Stats(body []byte) ([]Stat, error) {
	if !gjson.ValidBytes(body) {
		return nil, resilience.Format(resilience.ReasonMalformed, eris.New("extract: stats body is not json"))
	}
	obj := gjson.ParseBytes(body)
	if !obj.IsObject() {
		return nil, resilience.Format(resilience.ReasonMalformed, eris.New("extract: stats body is not an object"))
	}

	var stats []Stat
	seenTotal := false
	obj.ForEach(func(key, value gjson.Result) bool {
		if key.String() == "total_surahs" {
			seenTotal = true
			stats = append(stats, Stat{Name: statName(key.String()), Value: TotalSurahs})
			return true
		}
		if value.Type != gjson.Number {
			return true
		}
		stats = append(stats, Stat{Name: statName(key.String()), Value: value.Float()})
		return true
	})
	if !seenTotal {
		stats = append(stats, Stat{Name: statName("total_surahs"), Value: TotalSurahs})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Value < stats[j].Value
	})
	return stats, nil
}

func statName(key string) string {
	return TitleCase(strings.Join(strings.Split(key, "_"), " "))
}
