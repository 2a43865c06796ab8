package pipeline

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/model"
)

// MannersEndpoint is the good-manners article.
const MannersEndpoint = "14618/good-manners-in-the-quran/"

// MannerSource extracts the good-manners list. The whole list comes from
// one page, so every job is pure merging.
type MannerSource struct {
	Fetcher fetcher.Fetcher
	Base    string
}

// Category implements Source.
func (s *MannerSource) Category() string { return CategoryManners }

// Plan fetches the article and returns one job per manner.
func (s *MannerSource) Plan(ctx context.Context) ([]Job, error) {
	res, err := fetchDocument(ctx, s.Fetcher, fetcher.Request{
		BaseURL:  s.Base,
		Endpoint: MannersEndpoint,
		Slash:    true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "manners: fetch article")
	}
	doc, err := res.Document()
	if err != nil {
		return nil, eris.Wrap(err, "manners: parse article")
	}

	manners := extract.Manners(doc)
	jobs := make([]Job, 0, len(manners))
	for i, m := range manners {
		frag := extract.MannerFragment(i+1, m)
		jobs = append(jobs, Job{
			ID: strconv.Itoa(i + 1),
			Run: func(context.Context) (*model.Record, error) {
				return mergeRecord(singleSourcePlan(CategoryManners, extract.SourceManners), frag.EntityID, frag), nil
			},
		})
	}
	return jobs, nil
}
