package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// --- Fetcher fake ---

type fakeResponse struct {
	body        string
	contentType string
	err         error
}

// fakeFetcher serves canned bodies by final request URL. Unknown URLs are a
// transport not-found.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: map[string]fakeResponse{}, calls: map[string]int{}}
}

func (f *fakeFetcher) html(url, body string) *fakeFetcher {
	f.responses[url] = fakeResponse{body: body, contentType: "text/html; charset=utf-8"}
	return f
}

func (f *fakeFetcher) json(url, body string) *fakeFetcher {
	f.responses[url] = fakeResponse{body: body, contentType: "application/json"}
	return f
}

func (f *fakeFetcher) fail(url string, err error) *fakeFetcher {
	f.responses[url] = fakeResponse{err: err}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, req fetcher.Request) (*fetcher.Result, error) {
	url := req.URL()
	f.mu.Lock()
	f.calls[url]++
	resp, ok := f.responses[url]
	f.mu.Unlock()

	if !ok {
		return nil, resilience.Transport(resilience.ReasonNotFound, eris.Errorf("fake: no response for %s", url))
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &fetcher.Result{URL: url, StatusCode: 200, ContentType: resp.contentType, Body: []byte(resp.body)}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// --- Document writer fake ---

type memDocs struct {
	mu   sync.Mutex
	docs map[string]any
}

func (m *memDocs) Write(category, name string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[string]any{}
	}
	m.docs[category+"/"+name] = v
	return nil
}
