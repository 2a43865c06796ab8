package geocode

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// locateGoogle asks the Google Geocoding API for place. Any status other
// than OK is an unmatched answer, not an error.
func (g *geocoder) locateGoogle(ctx context.Context, place string) (Coordinates, error) {
	if g.googleKey == "" {
		return Coordinates{}, eris.New("geocode: google api key not configured")
	}

	body, err := g.getJSON(ctx, "google", g.googleURL, url.Values{
		"address": {place},
		"key":     {g.googleKey},
	})
	if err != nil {
		return Coordinates{}, err
	}

	doc := gjson.ParseBytes(body)
	loc := doc.Get("results.0.geometry.location")
	if doc.Get("status").String() != "OK" || !loc.Exists() {
		return Coordinates{Source: "google"}, nil
	}
	return Coordinates{
		Latitude:  loc.Get("lat").Float(),
		Longitude: loc.Get("lng").Float(),
		Source:    "google",
		Matched:   true,
	}, nil
}
