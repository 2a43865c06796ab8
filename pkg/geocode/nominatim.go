package geocode

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// locateNominatim resolves a free-text place with the OSM search API. The
// first hit wins.
func (g *geocoder) locateNominatim(ctx context.Context, place string) (Coordinates, error) {
	body, err := g.getJSON(ctx, "nominatim", g.nominatimURL, url.Values{
		"q":      {place},
		"format": {"json"},
		"limit":  {"1"},
	})
	if err != nil {
		return Coordinates{}, err
	}

	hit := gjson.GetBytes(body, "0")
	if !hit.Exists() {
		return Coordinates{Source: "nominatim"}, nil
	}
	// Nominatim reports coordinates as decimal strings.
	lat, err := strconv.ParseFloat(hit.Get("lat").String(), 64)
	if err != nil {
		return Coordinates{}, eris.Wrap(err, "geocode: nominatim lat")
	}
	lng, err := strconv.ParseFloat(hit.Get("lon").String(), 64)
	if err != nil {
		return Coordinates{}, eris.Wrap(err, "geocode: nominatim lon")
	}
	return Coordinates{Latitude: lat, Longitude: lng, Source: "nominatim", Matched: true}, nil
}

// getJSON waits on the shared limiter, issues a GET and returns a body that
// is valid JSON.
func (g *geocoder) getJSON(ctx context.Context, provider, base string, params url.Values) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "geocode: %s rate limit", provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s request", provider)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s request", provider)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: %s status %d", provider, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s read body", provider)
	}
	if !gjson.ValidBytes(body) {
		return nil, eris.Errorf("geocode: %s returned malformed json", provider)
	}
	return body, nil
}
