package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/pdftext"
	"github.com/sells-group/islamic-data/pkg/geocode"
)

// QiblaSource computes the prayer direction for every country in the
// bundled PDF.
type QiblaSource struct {
	Fetcher  fetcher.Fetcher
	Geocoder geocode.Client
	PDF      pdftext.Extractor
	PDFPath  string
	// AladhanBase hosts the qibla/{lat}/{lng} endpoint.
	AladhanBase string
	// DefaultBearing is used when the upstream status is not "OK".
	DefaultBearing float64
}

// Category implements Source.
func (s *QiblaSource) Category() string { return CategoryQibla }

// Plan reads the country list from the PDF and returns one job per country.
func (s *QiblaSource) Plan(ctx context.Context) ([]Job, error) {
	lines, err := s.PDF.ExtractLines(ctx, s.PDFPath)
	if err != nil {
		return nil, eris.Wrap(err, "qibla: read countries")
	}
	countries := extract.Countries(lines)

	jobs := make([]Job, 0, len(countries))
	for _, country := range countries {
		jobs = append(jobs, Job{
			ID: country,
			Run: func(ctx context.Context) (*model.Record, error) {
				return s.country(ctx, country)
			},
		})
	}
	return jobs, nil
}

func (s *QiblaSource) country(ctx context.Context, country string) (*model.Record, error) {
	coords, err := s.Geocoder.Locate(ctx, country)
	if err != nil {
		return nil, eris.Wrapf(err, "qibla: locate %s", country)
	}

	fallback := s.DefaultBearing
	if fallback == 0 {
		fallback = extract.DefaultBearing
	}
	res, err := s.Fetcher.Fetch(ctx, fetcher.Request{
		BaseURL:  s.AladhanBase,
		Endpoint: extract.QiblaEndpoint(coords.Latitude, coords.Longitude),
		Slash:    true,
		Expect:   fetcher.ExpectJSON,
	})
	if err != nil {
		return nil, err
	}
	bearing := extract.QiblaBearing(res.Body, fallback)

	frag, err := extract.QiblaFragment(country, coords.Latitude, coords.Longitude, bearing, coords.Source)
	if err != nil {
		return nil, err
	}
	return mergeRecord(singleSourcePlan(CategoryQibla, extract.SourceQibla), country, frag), nil
}
