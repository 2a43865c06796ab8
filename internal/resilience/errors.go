// Package resilience classifies pipeline failures and holds the retry policy
// the orchestrator applies to whole jobs.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// Kind is the top-level failure class recorded per entity.
type Kind string

const (
	// KindTransport covers disconnects, DNS failures and timeouts. Fatal to
	// the one fetch, propagated to the job.
	KindTransport Kind = "transport"
	// KindFormat covers unexpected content types and malformed JSON/HTML.
	KindFormat Kind = "format"
	// KindAlignment means two paired sources disagree on item count.
	KindAlignment Kind = "alignment"
	// KindNotFound means no parsing rule is registered for a subject.
	KindNotFound Kind = "not_found"
	// KindPersist covers record store and ledger write failures.
	KindPersist Kind = "persist"
	// KindInternal is anything unclassified, including recovered panics.
	KindInternal Kind = "internal"
)

// Transport and format failure reasons.
const (
	ReasonDisconnected        = "disconnected"
	ReasonTimeout             = "timeout"
	ReasonNotFound            = "not-found"
	ReasonDNS                 = "dns"
	ReasonHTTPStatus          = "http-status"
	ReasonContentTypeMismatch = "content-type-mismatch"
	ReasonMalformed           = "malformed"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind   Kind
	Reason string
	Entity string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString("/")
		b.WriteString(e.Reason)
	}
	if e.Entity != "" {
		b.WriteString(" [")
		b.WriteString(e.Entity)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error.
func New(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// WithEntity returns a copy of e tagged with the entity it belongs to.
func (e *Error) WithEntity(entity string) *Error {
	cp := *e
	cp.Entity = entity
	return &cp
}

// Transport builds a transport error with the given reason.
func Transport(reason string, err error) *Error {
	return New(KindTransport, reason, err)
}

// Format builds a format error.
func Format(reason string, err error) *Error {
	return New(KindFormat, reason, err)
}

// Alignment reports a variant whose item count does not match the expected count.
func Alignment(field, variant string, want, got int) *Error {
	return New(KindAlignment, variant,
		fmt.Errorf("%s: variant %q has %d items, want %d", field, variant, got, want))
}

// NotFound reports a subject without a registered rule.
func NotFound(subject string) *Error {
	return New(KindNotFound, "", fmt.Errorf("no rule registered for %q", subject))
}

// KindOf returns the classified kind of err, or KindInternal when err carries
// no classification.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the classified reason of err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// ClassifyTransport maps a raw client error onto a transport reason.
func ClassifyTransport(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transport(ReasonTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transport(ReasonTimeout, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Transport(ReasonDNS, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return Transport(ReasonDisconnected, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "temporary failure in name resolution"):
		return Transport(ReasonDNS, err)
	case strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "tls handshake timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return Transport(ReasonTimeout, err)
	}
	return Transport(ReasonDisconnected, err)
}

// IsTransient reports whether err is a transport failure worth retrying at
// the job level. Not-found and HTTP status failures are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindTransport {
		return false
	}
	return transientReason(e.Reason)
}
