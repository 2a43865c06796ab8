package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/model"
)

// HadithLinksName is the document holding the {book: link} index.
const HadithLinksName = "hadith_api_links"

// HadithSource downloads every hadith collection published in Language.
type HadithSource struct {
	Fetcher    fetcher.Fetcher
	ListingURL string
	Language   string
	// Links receives the {book: link} index during planning.
	Links DocumentWriter
}

// Category implements Source.
func (s *HadithSource) Category() string { return CategoryHadith }

// Plan fetches the collection listing, persists the link index and returns
// one job per book.
func (s *HadithSource) Plan(ctx context.Context) ([]Job, error) {
	res, err := s.Fetcher.Fetch(ctx, fetcher.Request{BaseURL: s.ListingURL, Expect: fetcher.ExpectJSON})
	if err != nil {
		return nil, eris.Wrap(err, "hadith: fetch listing")
	}
	lang := s.Language
	if lang == "" {
		lang = "English"
	}
	books, err := extract.HadithCollections(res.Body, lang)
	if err != nil {
		return nil, err
	}
	if s.Links != nil {
		if err := s.Links.Write(CategoryHadith, HadithLinksName, extract.HadithLinks(books)); err != nil {
			return nil, eris.Wrap(err, "hadith: write link index")
		}
	}

	jobs := make([]Job, 0, len(books))
	for _, b := range books {
		id := extract.HadithBookID(b.Book)
		jobs = append(jobs, Job{
			ID: id,
			Run: func(ctx context.Context) (*model.Record, error) {
				res, err := s.Fetcher.Fetch(ctx, fetcher.Request{BaseURL: b.Link, Expect: fetcher.ExpectJSON})
				if err != nil {
					return nil, err
				}
				frag, err := extract.HadithFragment(b, res.Body)
				if err != nil {
					return nil, err
				}
				return mergeRecord(singleSourcePlan(CategoryHadith, extract.SourceHadith), id, frag), nil
			},
		})
	}
	return jobs, nil
}
