// Package fetcher defines the connector contract for upstream providers and
// the error taxonomy shared by the concrete connectors in its subpackages.
// Connectors perform a single fetch with no retries; retry policy belongs to
// the orchestrating caller, which is safe because storage is idempotent.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"equilake/models"
)

// Kind distinguishes fetch failures the caller may retry from ones it
// should not.
type Kind int

const (
	// Transient covers timeouts, network failures and provider rate
	// limits. A blind retry of the whole run is safe.
	Transient Kind = iota
	// Permanent covers unknown symbols, bad credentials and malformed
	// responses. Retrying without a change will fail again.
	Permanent
)

func (k Kind) String() string {
	if k == Transient {
		return "transient"
	}
	return "permanent"
}

// FetchError is the failure type returned by every connector.
type FetchError struct {
	Provider string
	Symbol   string
	Kind     Kind
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s %s: status %d (%s): %v", e.Provider, e.Symbol, e.Status, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s %s (%s): %v", e.Provider, e.Symbol, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure is worth retrying.
func (e *FetchError) Temporary() bool {
	return e.Kind == Transient
}

// IsTransient reports whether err is a transient FetchError.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Transient
}

// Connector fetches one raw payload for a symbol and an as-of date. The
// payload is tagged with the symbol so independently arriving datasets can
// be joined later. Implementations must not store anything; persistence is
// the caller's step.
type Connector interface {
	Dataset() string
	Fetch(ctx context.Context, symbol string, asOf time.Time) (models.RawPayload, error)
}

// NewClient builds the HTTP client shared by the connectors. The timeout
// bounds every call so an unresponsive provider surfaces as a transient
// failure instead of an unbounded hang. Resty's own retries stay disabled.
func NewClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
}

// NewLimiter builds the per-connector rate limiter from config values,
// falling back to one request per second.
func NewLimiter(requestsPerSecond, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// ClassifyErr maps a transport-level error to a failure kind. Timeouts and
// temporary network conditions are transient, everything else permanent.
func ClassifyErr(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	return Permanent
}

// ClassifyStatus maps an HTTP status to a failure kind. Rate limiting and
// server-side failures are transient; the rest (unknown symbol, bad key)
// are permanent.
func ClassifyStatus(status int) Kind {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return Transient
	}
	return Permanent
}

// AsOfOrNow defaults a zero as-of date to the current UTC day.
func AsOfOrNow(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return time.Now().UTC()
	}
	return asOf.UTC()
}
