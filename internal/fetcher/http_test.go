package fetcher

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/islamic-data/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:         "test-agent",
		MaxInFlight:       4,
		RequestsPerSecond: 1000,
	})
}

func TestRequestURL(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"slash", Request{BaseURL: "https://api.test", Endpoint: "12", Slash: true}, "https://api.test/12"},
		{"no slash", Request{BaseURL: "https://api.test/x", Endpoint: ""}, "https://api.test/x"},
		{"range", Request{BaseURL: "https://api.test", Endpoint: "2", Slash: true, Suffix: RangeSuffix(3, 7)}, "https://api.test/2/3-7"},
		{"keyword", Request{BaseURL: "https://api.test", Endpoint: "corpus/", Slash: true, Suffix: "mercy"}, "https://api.test/corpus/mercy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.URL())
		})
	}
}

func TestFetch_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "secret", r.Header.Get("X-RapidAPI-Key"))
		assert.True(t, r.Close || strings.EqualFold(r.Header.Get("Connection"), "close"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"surah_name":"Al-Fatiha"}`))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Fetch(context.Background(), Request{
		BaseURL: srv.URL, Endpoint: "1", Slash: true,
		Headers: map[string]string{"X-RapidAPI-Key": "secret"},
		Expect:  ExpectJSON,
	})
	require.NoError(t, err)
	assert.False(t, res.Mismatch)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		ID   int    `json:"id"`
		Name string `json:"surah_name"`
	}
	require.NoError(t, res.JSON(&body))
	assert.Equal(t, 1, body.ID)
	assert.Equal(t, "Al-Fatiha", body.Name)
}

func TestFetch_ContentTypeMismatchFallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>maintenance</body></html>"))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Fetch(context.Background(), Request{BaseURL: srv.URL, Expect: ExpectJSON})
	require.NoError(t, err)
	assert.True(t, res.Mismatch)
	assert.Contains(t, res.Text(), "maintenance")

	var v map[string]any
	err = res.JSON(&v)
	require.Error(t, err)
	assert.Equal(t, resilience.KindFormat, resilience.KindOf(err))
	assert.Equal(t, resilience.ReasonContentTypeMismatch, resilience.ReasonOf(err))
}

func TestFetch_MismatchStillDecodesJSONText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Fetch(context.Background(), Request{BaseURL: srv.URL, Expect: ExpectJSON})
	require.NoError(t, err)
	assert.True(t, res.Mismatch)

	got, err := DecodeJSON[map[string]bool](res)
	require.NoError(t, err)
	assert.True(t, (*got)["ok"])
}

func TestFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), Request{BaseURL: srv.URL, Endpoint: "missing", Slash: true})
	require.Error(t, err)
	assert.Equal(t, resilience.KindTransport, resilience.KindOf(err))
	assert.Equal(t, resilience.ReasonNotFound, resilience.ReasonOf(err))
}

func TestFetch_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), Request{BaseURL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, resilience.ReasonHTTPStatus, resilience.ReasonOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ServerDisconnect(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), Request{BaseURL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, resilience.KindTransport, resilience.KindOf(err))
	assert.Equal(t, resilience.ReasonDisconnected, resilience.ReasonOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_BreakerStopsCallingFailingHost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	breakers := resilience.NewHostBreakers(resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	f := NewHTTPFetcher(HTTPOptions{MaxInFlight: 4, RequestsPerSecond: 1000, Breakers: breakers})

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), Request{BaseURL: srv.URL})
		assert.Equal(t, resilience.ReasonDisconnected, resilience.ReasonOf(err))
	}

	_, err := f.Fetch(context.Background(), Request{BaseURL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, resilience.ReasonCircuitOpen, resilience.ReasonOf(err))
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, breakers.States(), 1)
}

func TestFetch_BreakerIgnoresNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	breakers := resilience.NewHostBreakers(resilience.BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	f := NewHTTPFetcher(HTTPOptions{MaxInFlight: 4, RequestsPerSecond: 1000, Breakers: breakers})

	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), Request{BaseURL: srv.URL})
		assert.Equal(t, resilience.ReasonNotFound, resilience.ReasonOf(err))
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestFetcher().Fetch(ctx, Request{BaseURL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, resilience.ReasonTimeout, resilience.ReasonOf(err))
}

func TestFetch_TLSVerificationDisabled(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Fetch(context.Background(), Request{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "secure", res.Text())

	strict := NewHTTPFetcher(HTTPOptions{VerifyTLS: true})
	_, err = strict.Fetch(context.Background(), Request{BaseURL: srv.URL})
	require.Error(t, err)
}

func TestFetch_BoundedInFlight(t *testing.T) {
	var current, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{MaxInFlight: 2, RequestsPerSecond: 1000})
	done := make(chan struct{})
	for range 6 {
		go func() {
			_, _ = f.Fetch(context.Background(), Request{BaseURL: srv.URL})
			done <- struct{}{}
		}()
	}
	for range 6 {
		<-done
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFetch_RateLimitedHostSlowsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Fetch(context.Background(), Request{BaseURL: srv.URL})
	require.Error(t, err)

	host := strings.TrimPrefix(srv.URL, "http://")
	assert.Equal(t, rate.Limit(500), f.limiters.get(host).Limit())
}

func TestFetch_Document(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h2>Fact one (Religion > Islam )</h2></body></html>`))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Fetch(context.Background(), Request{BaseURL: srv.URL, Expect: ExpectHTML})
	require.NoError(t, err)
	doc, err := res.Document()
	require.NoError(t, err)
	assert.Equal(t, "Fact one (Religion > Islam )", doc.Find("h2").First().Text())
}

func TestDNSCache_ReusesLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)

	cache := newDNSCache(time.Minute)
	for range 2 {
		conn, err := cache.DialContext(context.Background(), "tcp", net.JoinHostPort("localhost", port))
		require.NoError(t, err)
		conn.Close()
	}
	assert.Equal(t, 1, cache.entries.Len())

	conn, err := cache.DialContext(context.Background(), "tcp", strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	conn.Close()
	assert.Equal(t, 1, cache.entries.Len())
}
