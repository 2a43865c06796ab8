package pipeline

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// ProphetIndexEndpoint is the prophet-stories index page.
const ProphetIndexEndpoint = "prophet-stories/"

// ProphetSource extracts prophet narratives through the rule registry.
type ProphetSource struct {
	Fetcher   fetcher.Fetcher
	PagesBase string
	Rules     *extract.NarrativeRules
}

// Category implements Source.
func (s *ProphetSource) Category() string { return CategoryProphets }

// Plan parses the index into subject tags and intros, then returns one job
// per tag.
func (s *ProphetSource) Plan(ctx context.Context) ([]Job, error) {
	if s.Rules == nil {
		return nil, eris.New("prophets: no narrative rules configured")
	}
	res, err := fetchDocument(ctx, s.Fetcher, fetcher.Request{
		BaseURL:  s.PagesBase,
		Endpoint: ProphetIndexEndpoint,
		Slash:    true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "prophets: fetch index")
	}
	doc, err := res.Document()
	if err != nil {
		return nil, eris.Wrap(err, "prophets: parse index")
	}
	listing := extract.ProphetIndex(doc)

	seen := map[string]bool{}
	var jobs []Job
	for _, tag := range listing.Endpoints {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		jobs = append(jobs, Job{
			ID: tag,
			Run: func(ctx context.Context) (*model.Record, error) {
				return s.prophet(ctx, listing, tag)
			},
		})
	}
	return jobs, nil
}

func (s *ProphetSource) prophet(ctx context.Context, listing extract.ProphetListing, tag string) (*model.Record, error) {
	var doc *goquery.Document
	if s.Rules.NeedsPage(tag) {
		res, err := fetchDocument(ctx, s.Fetcher, fetcher.Request{
			BaseURL:  s.PagesBase,
			Endpoint: tag,
			Slash:    true,
		})
		if err != nil {
			return nil, err
		}
		if doc, err = res.Document(); err != nil {
			return nil, err
		}
	}

	story, err := s.Rules.Extract(tag, doc)
	if err != nil {
		if resilience.KindOf(err) != resilience.KindNotFound {
			return nil, err
		}
		zap.L().Debug("prophets: no rule registered, using name only", zap.String("tag", tag))
	}
	return mergeRecord(ProphetPlan(), tag, listing.IndexFragment(tag), story), nil
}
