package pipeline

import (
	"context"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// TranslationIndexEndpoint lists the per-surah translation pages.
const TranslationIndexEndpoint = "quran-transliteration"

// SurahSource pairs the surah API with the scraped translator pages.
type SurahSource struct {
	Fetcher fetcher.Fetcher
	// APIBase and APIHeaders address the surah API (RapidAPI key/host).
	APIBase    string
	APIHeaders map[string]string
	// PagesBase hosts the transliteration index and per-surah pages.
	PagesBase string
	// First and Last bound the surah range; zero values mean 1..114.
	First, Last int
}

// Category implements Source.
func (s *SurahSource) Category() string { return CategorySurahs }

// Plan fetches the translation index, then returns one job per surah.
func (s *SurahSource) Plan(ctx context.Context) ([]Job, error) {
	res, err := fetchDocument(ctx, s.Fetcher, fetcher.Request{
		BaseURL:  s.PagesBase,
		Endpoint: TranslationIndexEndpoint,
		Slash:    true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "surahs: fetch translation index")
	}
	doc, err := res.Document()
	if err != nil {
		return nil, eris.Wrap(err, "surahs: parse translation index")
	}
	pages := extract.TranslationIndex(doc)

	first, last := s.First, s.Last
	if first <= 0 {
		first = 1
	}
	if last <= 0 {
		last = extract.TotalSurahs
	}
	zap.L().Info("surahs: planned",
		zap.Int("first", first),
		zap.Int("last", last),
		zap.Int("translation_pages", len(pages)),
	)

	jobs := make([]Job, 0, last-first+1)
	for n := first; n <= last; n++ {
		page := ""
		if n-1 < len(pages) {
			page = pages[n-1]
		}
		jobs = append(jobs, Job{
			ID: strconv.Itoa(n),
			Run: func(ctx context.Context) (*model.Record, error) {
				return s.surah(ctx, n, page)
			},
		})
	}
	return jobs, nil
}

func (s *SurahSource) surah(ctx context.Context, n int, page string) (*model.Record, error) {
	id := strconv.Itoa(n)
	var apiFrag, pageFrag model.Fragment

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.Fetcher.Fetch(gctx, fetcher.Request{
			BaseURL:  s.APIBase,
			Endpoint: id,
			Slash:    true,
			Headers:  s.APIHeaders,
			Expect:   fetcher.ExpectJSON,
		})
		if err != nil {
			return err
		}
		apiFrag, err = extract.SurahAPI(res.Body)
		if err != nil {
			return err
		}
		if apiFrag.EntityID != id {
			return resilience.Format(resilience.ReasonMalformed,
				eris.Errorf("surahs: requested %s, api returned %s", id, apiFrag.EntityID))
		}
		return nil
	})
	g.Go(func() error {
		if page == "" {
			pageFrag = model.UnavailableFragment(id, extract.SourceSurahTranslations)
			return nil
		}
		// A missing translator page leaves the surah partial, not failed.
		res, err := fetchDocument(gctx, s.Fetcher, fetcher.Request{
			BaseURL:  s.PagesBase,
			Endpoint: page,
			Slash:    true,
		})
		if err == nil {
			var doc *goquery.Document
			if doc, err = res.Document(); err == nil {
				pageFrag = extract.SurahTranslations(id, doc)
				return nil
			}
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		zap.L().Warn("surahs: translation page unavailable",
			zap.String("surah", id),
			zap.String("page", page),
			zap.Error(err),
		)
		pageFrag = model.UnavailableFragment(id, extract.SourceSurahTranslations)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeRecord(SurahPlan(id), id, apiFrag, pageFrag), nil
}
