// Package geocode resolves place names to coordinates via OpenStreetMap
// Nominatim (primary) and Google (fallback), with a fixed default when
// neither can answer.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default coordinates used when no provider resolves a place.
const (
	DefaultLatitude  = 25.4106386
	DefaultLongitude = 51.1846025
)

// Client resolves a place name to coordinates.
type Client interface {
	// Locate never fails for an unresolvable place; it returns the default
	// coordinates with Matched=false. Errors are reserved for ctx expiry.
	Locate(ctx context.Context, place string) (Coordinates, error)
}

// Coordinates is the outcome of one lookup.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source"` // "nominatim", "google" or "default"
	Matched   bool    `json:"matched"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables the Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets the HTTP client for all providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit shared by providers.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithNominatimURL overrides the Nominatim search endpoint. An empty URL
// disables the provider.
func WithNominatimURL(u string) Option {
	return func(g *geocoder) {
		g.nominatimURL = u
	}
}

// WithGoogleURL overrides the Google Geocoding endpoint.
func WithGoogleURL(u string) Option {
	return func(g *geocoder) {
		g.googleURL = u
	}
}

// WithDefault overrides the fallback coordinates.
func WithDefault(lat, lng float64) Option {
	return func(g *geocoder) {
		g.defaultLat, g.defaultLng = lat, lng
	}
}

// WithUserAgent sets the User-Agent Nominatim requires.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithCacheTTL sets how long resolved places are remembered.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *geocoder) {
		g.cacheTTL = ttl
	}
}

type geocoder struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	nominatimURL string
	googleURL    string
	googleKey    string
	userAgent    string
	defaultLat   float64
	defaultLng   float64
	cacheTTL     time.Duration
	cache        *expirable.LRU[string, Coordinates]
}

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(1, 1), // Nominatim usage policy: 1 req/s
		nominatimURL: nominatimSearchURL,
		googleURL:    googleGeocodeURL,
		userAgent:    "islamic-data/1.0",
		defaultLat:   DefaultLatitude,
		defaultLng:   DefaultLongitude,
		cacheTTL:     24 * time.Hour,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cache = expirable.NewLRU[string, Coordinates](1024, nil, g.cacheTTL)
	return g
}

// Locate resolves place, trying Nominatim then Google, then the default.
func (g *geocoder) Locate(ctx context.Context, place string) (Coordinates, error) {
	key := cacheKey(place)
	if c, ok := g.cache.Get(key); ok {
		return c, nil
	}

	if g.nominatimURL != "" {
		c, err := g.locateNominatim(ctx, place)
		if err == nil && c.Matched {
			g.cache.Add(key, c)
			return c, nil
		}
		if ctx.Err() != nil {
			return Coordinates{}, ctx.Err()
		}
		if err != nil {
			zap.L().Debug("geocode: nominatim failed", zap.String("place", place), zap.Error(err))
		}
	}

	if g.googleKey != "" {
		c, err := g.locateGoogle(ctx, place)
		if err == nil && c.Matched {
			g.cache.Add(key, c)
			return c, nil
		}
		if ctx.Err() != nil {
			return Coordinates{}, ctx.Err()
		}
		if err != nil {
			zap.L().Debug("geocode: google failed", zap.String("place", place), zap.Error(err))
		}
	}

	return Coordinates{
		Latitude:  g.defaultLat,
		Longitude: g.defaultLng,
		Source:    "default",
	}, nil
}

func cacheKey(place string) string {
	return strings.Join(strings.Fields(strings.ToLower(place)), " ")
}
