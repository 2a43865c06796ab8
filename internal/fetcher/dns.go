package fetcher

import (
	"context"
	"net"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rotisserie/eris"
)

// dnsCache resolves hostnames once per TTL and dials the cached addresses.
type dnsCache struct {
	dialer   *net.Dialer
	resolver *net.Resolver
	entries  *expirable.LRU[string, []string]
}

func newDNSCache(ttl time.Duration) *dnsCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &dnsCache{
		dialer:   &net.Dialer{Timeout: 30 * time.Second},
		resolver: net.DefaultResolver,
		entries:  expirable.NewLRU[string, []string](512, nil, ttl),
	}
}

func (d *dnsCache) lookup(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := d.entries.Get(host); ok {
		return addrs, nil
	}
	addrs, err := d.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	d.entries.Add(host, addrs)
	return addrs, nil
}

// DialContext satisfies http.Transport.DialContext.
func (d *dnsCache) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: split address %s", addr)
	}
	if net.ParseIP(host) != nil {
		return d.dialer.DialContext(ctx, network, addr)
	}

	addrs, err := d.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, ip := range addrs {
		conn, err := d.dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &net.DNSError{Err: "no addresses", Name: host}
	}
	return nil, lastErr
}
