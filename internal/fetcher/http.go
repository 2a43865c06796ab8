package fetcher

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/islamic-data/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	// Timeout is the whole-request timeout. Zero leaves only the transport
	// defaults in place; callers add their own deadlines through ctx.
	Timeout time.Duration
	// MaxInFlight caps concurrent requests across all hosts.
	MaxInFlight int
	// DNSTTL is how long resolved addresses are reused.
	DNSTTL time.Duration
	// RequestsPerSecond and Burst seed each per-host limiter.
	RequestsPerSecond float64
	Burst             int
	// VerifyTLS turns certificate verification back on. Scrape targets often
	// serve untrusted certificates, so it is off by default.
	VerifyTLS bool
	// Breakers, when set, stops calling a host after repeated transient
	// failures until its cooldown passes.
	Breakers *resilience.HostBreakers
}

// HTTPFetcher implements Fetcher with one closed connection per call.
type HTTPFetcher struct {
	client   *resty.Client
	opts     HTTPOptions
	inFlight *semaphore.Weighted
	limiters *hostLimiters
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "islamic-data/1.0"
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 16
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = int(opts.RequestsPerSecond)
	}

	dns := newDNSCache(opts.DNSTTL)
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dns.DialContext,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !opts.VerifyTLS}, //nolint:gosec
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := resty.New().
		SetTransport(transport).
		SetCloseConnection(true).
		SetHeader("User-Agent", opts.UserAgent)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &HTTPFetcher{
		client:   client,
		opts:     opts,
		inFlight: semaphore.NewWeighted(int64(opts.MaxInFlight)),
		limiters: newHostLimiters(opts.RequestsPerSecond, opts.Burst),
	}
}

// Fetch issues one GET and classifies the outcome.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	target := req.URL()
	u, err := url.Parse(target)
	if err != nil {
		return nil, resilience.Format(resilience.ReasonMalformed, eris.Wrapf(err, "fetcher: parse url %q", target))
	}

	if f.opts.Breakers == nil {
		return f.get(ctx, req, target, u.Host)
	}
	br := f.opts.Breakers.For(u.Host)
	if err := br.Allow(); err != nil {
		return nil, err
	}
	res, err := f.get(ctx, req, target, u.Host)
	br.Record(err)
	return res, err
}

func (f *HTTPFetcher) get(ctx context.Context, req Request, target, host string) (*Result, error) {
	if err := f.inFlight.Acquire(ctx, 1); err != nil {
		return nil, resilience.ClassifyTransport(eris.Wrap(err, "fetcher: acquire slot"))
	}
	defer f.inFlight.Release(1)

	lim := f.limiters.get(host)
	if err := lim.Wait(ctx); err != nil {
		return nil, resilience.ClassifyTransport(eris.Wrap(err, "fetcher: rate limiter wait"))
	}

	r := f.client.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}

	start := time.Now()
	resp, err := r.Get(target)
	if err != nil {
		zap.L().Debug("fetcher: request failed",
			zap.String("url", target),
			zap.Error(err),
		)
		return nil, resilience.ClassifyTransport(eris.Wrapf(err, "fetcher: get %s", target))
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		return nil, resilience.Transport(resilience.ReasonNotFound, eris.Errorf("fetcher: %s returned 404", target))
	case status == http.StatusTooManyRequests:
		lim.OnRateLimit(host)
		return nil, resilience.Transport(resilience.ReasonHTTPStatus, eris.Errorf("fetcher: %s returned 429", target))
	case status >= 400:
		return nil, resilience.Transport(resilience.ReasonHTTPStatus, eris.Errorf("fetcher: %s returned %d", target, status))
	}
	lim.OnSuccess()

	contentType := resp.Header().Get("Content-Type")
	result := &Result{
		URL:         target,
		StatusCode:  status,
		ContentType: contentType,
		Body:        resp.Body(),
		Mismatch:    !contentTypeMatches(req.Expect, contentType),
	}
	if result.Mismatch {
		zap.L().Debug("fetcher: content type mismatch, keeping raw text",
			zap.String("url", target),
			zap.String("content_type", contentType),
		)
	}

	zap.L().Debug("fetcher: fetched",
		zap.String("url", target),
		zap.Int("status", status),
		zap.Int("bytes", len(result.Body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
