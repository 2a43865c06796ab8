package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ReasonCircuitOpen marks a fetch refused locally because its host's
// breaker is open.
const ReasonCircuitOpen = "circuit-open"

// BreakerState is the state of one host's breaker.
type BreakerState int

const (
	// BreakerClosed lets every request through.
	BreakerClosed BreakerState = iota
	// BreakerOpen refuses requests until the cooldown has passed.
	BreakerOpen
	// BreakerHalfOpen admits one trial request.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig controls every breaker of a HostBreakers.
type BreakerConfig struct {
	// Threshold is the number of consecutive transient failures that opens
	// a host. Default 5.
	Threshold int
	// Cooldown is how long an open host refuses requests. Default 30s.
	Cooldown time.Duration
	// OnStateChange is called with the breaker lock held; keep it cheap.
	OnStateChange func(host string, from, to BreakerState)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Breaker tracks consecutive transient failures against one upstream host.
// Only transient transport failures count: a 404 or a malformed page says
// nothing about the host's health.
type Breaker struct {
	host string
	cfg  BreakerConfig
	now  func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trial    bool
}

// Allow returns a transport/circuit-open error when the host is open, or
// when it is half-open and its trial request is already in flight.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.set(BreakerHalfOpen)
	}
	switch b.state {
	case BreakerOpen:
		return Transport(ReasonCircuitOpen, eris.Errorf("fetcher: %s is failing, retry after %s", b.host, b.cfg.Cooldown))
	case BreakerHalfOpen:
		if b.trial {
			return Transport(ReasonCircuitOpen, eris.Errorf("fetcher: %s trial request in flight", b.host))
		}
		b.trial = true
	}
	return nil
}

// Record feeds the outcome of an allowed request back into the breaker.
// Cancellation by the caller is ignored.
func (b *Breaker) Record(err error) {
	if errors.Is(err, context.Canceled) {
		b.mu.Lock()
		b.trial = false
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false

	if !IsTransient(err) {
		b.failures = 0
		if b.state != BreakerClosed {
			b.set(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.set(BreakerOpen)
		}
	}
}

// State returns the current state, reporting an open breaker whose cooldown
// has passed as half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) set(to BreakerState) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.host, from, to)
	}
}

// HostBreakers hands out one Breaker per upstream host.
type HostBreakers struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewHostBreakers creates an empty set of per-host breakers.
func NewHostBreakers(cfg BreakerConfig) *HostBreakers {
	return &HostBreakers{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker of host, creating it closed.
func (h *HostBreakers) For(host string) *Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[host]
	if !ok {
		b = &Breaker{host: host, cfg: h.cfg, now: h.now}
		h.breakers[host] = b
	}
	return b
}

// States snapshots the state of every host seen so far.
func (h *HostBreakers) States() map[string]BreakerState {
	h.mu.Lock()
	hosts := make(map[string]*Breaker, len(h.breakers))
	for host, b := range h.breakers {
		hosts[host] = b
	}
	h.mu.Unlock()

	out := make(map[string]BreakerState, len(hosts))
	for host, b := range hosts {
		out[host] = b.State()
	}
	return out
}
