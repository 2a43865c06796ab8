// Package fetcher issues the outbound API and page requests of the pipeline.
package fetcher

import (
	"context"
	"fmt"
	"strings"
)

// Expect is the content type a caller expects back.
type Expect int

const (
	// ExpectAny accepts any content type.
	ExpectAny Expect = iota
	// ExpectJSON flags non-JSON responses as a content-type mismatch.
	ExpectJSON
	// ExpectHTML flags non-HTML responses as a content-type mismatch.
	ExpectHTML
)

// Request describes one GET. The final address is
// BaseURL + ("/" if Slash) + Endpoint + Suffix. Suffix grammar is
// source-specific and passed through untouched.
type Request struct {
	BaseURL  string
	Endpoint string
	Slash    bool
	Suffix   string
	Headers  map[string]string
	Expect   Expect
}

// URL builds the final request address.
func (r Request) URL() string {
	var b strings.Builder
	b.WriteString(r.BaseURL)
	if r.Slash {
		b.WriteString("/")
	}
	b.WriteString(r.Endpoint)
	b.WriteString(r.Suffix)
	return b.String()
}

// RangeSuffix formats an inclusive numeric range suffix ("/3-7").
func RangeSuffix(from, to int) string {
	return fmt.Sprintf("/%d-%d", from, to)
}

// Fetcher performs a single request. Implementations hold no shared mutable
// state beyond connection plumbing and never retry internally.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}
