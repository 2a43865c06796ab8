package pipeline

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/model"
)

// NamesEndpoint is the listing page of the 99 names.
const NamesEndpoint = "99-names-of-allah"

// NameSource extracts the 99 names with their detail pages.
type NameSource struct {
	Fetcher fetcher.Fetcher
	// PagesBase hosts the English listing and per-name detail pages.
	PagesBase string
	// ArabicURL is the table of Arabic names.
	ArabicURL string
}

// Category implements Source.
func (s *NameSource) Category() string { return CategoryNames }

// Plan fetches the English and Arabic listings concurrently and returns one
// job per English name.
func (s *NameSource) Plan(ctx context.Context) ([]Job, error) {
	var english, arabic []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := fetchDocument(gctx, s.Fetcher, fetcher.Request{BaseURL: s.PagesBase, Endpoint: NamesEndpoint, Slash: true})
		if err != nil {
			return eris.Wrap(err, "names: fetch listing")
		}
		doc, err := res.Document()
		if err != nil {
			return err
		}
		english = extract.NameListing(doc)
		return nil
	})
	g.Go(func() error {
		res, err := fetchDocument(gctx, s.Fetcher, fetcher.Request{BaseURL: s.ArabicURL})
		if err != nil {
			return eris.Wrap(err, "names: fetch arabic listing")
		}
		doc, err := res.Document()
		if err != nil {
			return err
		}
		arabic = extract.ArabicNames(doc)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(english))
	for i, name := range english {
		index := i + 1
		ar := ""
		if i < len(arabic) {
			ar = arabic[i]
		}
		listing := extract.NameListingFragment(index, name, ar)
		jobs = append(jobs, Job{
			ID: strconv.Itoa(index),
			Run: func(ctx context.Context) (*model.Record, error) {
				return s.name(ctx, listing, name)
			},
		})
	}
	return jobs, nil
}

func (s *NameSource) name(ctx context.Context, listing model.Fragment, name string) (*model.Record, error) {
	res, err := fetchDocument(ctx, s.Fetcher, fetcher.Request{
		BaseURL:  s.PagesBase,
		Endpoint: extract.NameSlug(name),
		Slash:    true,
	})
	if err != nil {
		return nil, err
	}
	doc, err := res.Document()
	if err != nil {
		return nil, err
	}
	detail := extract.NameDetail(listing.EntityID, doc)
	return mergeRecord(NamePlan(), listing.EntityID, listing, detail), nil
}
