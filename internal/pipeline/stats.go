package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
)

// FetchStats fetches the Quran statistics object and returns it sorted by
// value.
func FetchStats(ctx context.Context, f fetcher.Fetcher, statsURL string, headers map[string]string) ([]extract.Stat, error) {
	res, err := f.Fetch(ctx, fetcher.Request{BaseURL: statsURL, Headers: headers, Expect: fetcher.ExpectJSON})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch stats")
	}
	return extract.Stats(res.Body)
}
