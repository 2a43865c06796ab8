package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nominatimServer(t *testing.T, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
}

func TestLocate_Nominatim(t *testing.T) {
	srv := nominatimServer(t, `[{"lat":"30.0444","lon":"31.2357"}]`, nil)
	defer srv.Close()

	c := NewClient(WithNominatimURL(srv.URL), WithRateLimit(1000))
	got, err := c.Locate(context.Background(), "Egypt")
	require.NoError(t, err)
	assert.True(t, got.Matched)
	assert.Equal(t, "nominatim", got.Source)
	assert.InDelta(t, 30.0444, got.Latitude, 0.0001)
	assert.InDelta(t, 31.2357, got.Longitude, 0.0001)
}

func TestLocate_CachesByNormalizedPlace(t *testing.T) {
	var calls atomic.Int32
	srv := nominatimServer(t, `[{"lat":"1","lon":"2"}]`, &calls)
	defer srv.Close()

	c := NewClient(WithNominatimURL(srv.URL), WithRateLimit(1000))
	_, err := c.Locate(context.Background(), "Saudi Arabia")
	require.NoError(t, err)
	_, err = c.Locate(context.Background(), "  saudi   ARABIA ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLocate_GoogleFallback(t *testing.T) {
	nom := nominatimServer(t, `[]`, nil)
	defer nom.Close()
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "Qatar", r.URL.Query().Get("address"))
		_, _ = io.WriteString(w, `{"status":"OK","results":[{"geometry":{"location":{"lat":25.3,"lng":51.2}}}]}`)
	}))
	defer google.Close()

	c := NewClient(
		WithNominatimURL(nom.URL),
		WithGoogleURL(google.URL),
		WithGoogleAPIKey("test-key"),
		WithRateLimit(1000),
	)
	got, err := c.Locate(context.Background(), "Qatar")
	require.NoError(t, err)
	assert.Equal(t, "google", got.Source)
	assert.InDelta(t, 25.3, got.Latitude, 0.0001)
}

func TestLocate_DefaultWhenUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithNominatimURL(srv.URL), WithRateLimit(1000))
	got, err := c.Locate(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.False(t, got.Matched)
	assert.Equal(t, "default", got.Source)
	assert.InDelta(t, DefaultLatitude, got.Latitude, 1e-9)
	assert.InDelta(t, DefaultLongitude, got.Longitude, 1e-9)
}

func TestLocate_CustomDefault(t *testing.T) {
	c := NewClient(WithNominatimURL(""), WithDefault(1.5, 2.5))
	got, err := c.Locate(context.Background(), "anywhere")
	require.NoError(t, err)
	assert.Equal(t, Coordinates{Latitude: 1.5, Longitude: 2.5, Source: "default"}, got)
}

func TestLocate_GoogleZeroResults(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ZERO_RESULTS","results":[]}`)
	}))
	defer google.Close()

	c := NewClient(WithNominatimURL(""), WithGoogleURL(google.URL), WithGoogleAPIKey("k"), WithRateLimit(1000))
	got, err := c.Locate(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Equal(t, "default", got.Source)
}

func TestLocate_ContextCancelled(t *testing.T) {
	srv := nominatimServer(t, `[]`, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(WithNominatimURL(srv.URL))
	_, err := c.Locate(ctx, "Oman")
	require.Error(t, err)
}
