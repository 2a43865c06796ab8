package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter that speeds up on success (20%, up to
// 2x initial) and halves on 429 (down to initial/4).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(min(a.currentRate*1.2, a.maxRate))
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(max(a.currentRate*0.5, a.minRate))
	zap.L().Warn("fetcher: reducing rate after 429",
		zap.String("host", host),
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

func (a *AdaptiveLimiter) set(r rate.Limit) {
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// hostLimiters lazily creates one adaptive limiter per host.
type hostLimiters struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	byKey map[string]*AdaptiveLimiter
}

func newHostLimiters(rps float64, burst int) *hostLimiters {
	if burst < 1 {
		burst = 1
	}
	return &hostLimiters{rps: rate.Limit(rps), burst: burst, byKey: map[string]*AdaptiveLimiter{}}
}

func (h *hostLimiters) get(host string) *AdaptiveLimiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.byKey[host]
	if !ok {
		lim = NewAdaptiveLimiter(h.rps, h.burst)
		h.byKey[host] = lim
	}
	return lim
}
