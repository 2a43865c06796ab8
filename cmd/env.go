package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/pdftext"
	"github.com/sells-group/islamic-data/internal/pipeline"
	"github.com/sells-group/islamic-data/internal/resilience"
	"github.com/sells-group/islamic-data/internal/store"
	"github.com/sells-group/islamic-data/pkg/geocode"
)

// appEnv holds the store, ledger and shared fetcher the commands need.
type appEnv struct {
	Store   *store.FileStore
	Ledger  *store.Ledger // may be nil
	Fetcher fetcher.Fetcher
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Ledger != nil {
		_ = e.Ledger.Close()
	}
}

// initEnv validates cfg for mode and opens the record store. withLedger
// also opens and migrates the run ledger. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, withLedger bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{
		Store:   store.NewOSFileStore(cfg.Store.Root),
		Fetcher: newFetcher(),
	}
	if !withLedger {
		return env, nil
	}

	l, err := initLedger(ctx)
	if err != nil {
		return nil, err
	}
	env.Ledger = l
	return env, nil
}

func initLedger(ctx context.Context) (*store.Ledger, error) {
	l, err := store.NewLedger(cfg.Store.LedgerPath)
	if err != nil {
		return nil, eris.Wrap(err, "open run ledger")
	}
	if err := l.Migrate(ctx); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         cfg.Fetch.UserAgent,
		Timeout:           cfg.Fetch.Timeout(),
		MaxInFlight:       cfg.Fetch.MaxInFlight,
		DNSTTL:            cfg.Fetch.DNSTTL(),
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
		VerifyTLS:         cfg.Fetch.VerifyTLS,
		Breakers:          newBreakers(),
	})
}

func newBreakers() *resilience.HostBreakers {
	if cfg.Fetch.BreakerThreshold <= 0 {
		return nil
	}
	return resilience.NewHostBreakers(resilience.BreakerConfig{
		Threshold: cfg.Fetch.BreakerThreshold,
		Cooldown:  cfg.Fetch.BreakerCooldown(),
		OnStateChange: func(host string, from, to resilience.BreakerState) {
			zap.L().Warn("fetcher: host breaker changed state",
				zap.String("host", host),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

func newGeocoder() geocode.Client {
	return geocode.NewClient(
		geocode.WithGoogleAPIKey(cfg.Geocode.GoogleKey),
		geocode.WithNominatimURL(cfg.Geocode.NominatimURL),
		geocode.WithRateLimit(cfg.Geocode.RequestsPerSecond),
		geocode.WithCacheTTL(time.Duration(cfg.Geocode.CacheTTLHours)*time.Hour),
		geocode.WithDefault(cfg.Geocode.DefaultLatitude, cfg.Geocode.DefaultLongitude),
		geocode.WithUserAgent(cfg.Fetch.UserAgent),
	)
}

func orchestratorOptions(workers int) pipeline.OrchestratorOptions {
	if workers == 0 {
		workers = cfg.Pipeline.Workers
	}
	return pipeline.OrchestratorOptions{
		Workers: workers,
		Retry:   resilience.NewRetryPolicy(cfg.Pipeline.RetryAttempts, cfg.Pipeline.RetryBackoffMs),
	}
}

// sourceOptions narrows a category run from command flags.
type sourceOptions struct {
	First, Last int
}

// newSource builds the Source for category from cfg.
func newSource(category string, env *appEnv, opts sourceOptions) (pipeline.Source, error) {
	switch category {
	case pipeline.CategorySurahs:
		return &pipeline.SurahSource{
			Fetcher:    env.Fetcher,
			APIBase:    cfg.Endpoints.Quran,
			APIHeaders: cfg.RapidAPI.Headers(),
			PagesBase:  cfg.Endpoints.MyIslam,
			First:      opts.First,
			Last:       opts.Last,
		}, nil
	case pipeline.CategoryNames:
		return &pipeline.NameSource{
			Fetcher:   env.Fetcher,
			PagesBase: cfg.Endpoints.MyIslam,
			ArabicURL: cfg.Endpoints.AllahNames,
		}, nil
	case pipeline.CategoryProphets:
		rules, err := extract.NewNarrativeRules(extract.DefaultNarrativeRules)
		if err != nil {
			return nil, err
		}
		return &pipeline.ProphetSource{
			Fetcher:   env.Fetcher,
			PagesBase: cfg.Endpoints.MyIslam,
			Rules:     rules,
		}, nil
	case pipeline.CategoryQibla:
		return &pipeline.QiblaSource{
			Fetcher:        env.Fetcher,
			Geocoder:       newGeocoder(),
			PDF:            pdftext.NewPdfToText(cfg.Qibla.PdfToTextPath),
			PDFPath:        cfg.Qibla.PDFPath,
			AladhanBase:    cfg.Endpoints.Aladhan,
			DefaultBearing: cfg.Qibla.DefaultBearing,
		}, nil
	case pipeline.CategoryManners:
		return &pipeline.MannerSource{Fetcher: env.Fetcher, Base: cfg.Endpoints.IslamCity}, nil
	case pipeline.CategoryHadith:
		return &pipeline.HadithSource{
			Fetcher:    env.Fetcher,
			ListingURL: cfg.Endpoints.Hadith,
			Language:   cfg.Hadith.Language,
			Links:      env.Store,
		}, nil
	}
	return nil, eris.Errorf("unknown category %q", category)
}

// validateMode maps a category onto the config validation mode it needs.
func validateMode(category string) string {
	switch category {
	case pipeline.CategorySurahs, pipeline.CategoryQibla:
		return category
	}
	return "extract"
}
