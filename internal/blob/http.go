package blob

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/safefind/safefind/internal/constants"
)

// HTTPFetcher downloads images from http(s) URLs.
type HTTPFetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher whose requests give up after timeout.
// A positive ratePerSecond throttles outgoing requests; zero disables throttling.
func NewHTTPFetcher(timeout time.Duration, ratePerSecond float64) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBytes: constants.MaxImageBytes,
	}
	if ratePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), max(1, int(ratePerSecond)))
	}
	return f
}

func isHTTPURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Fetch downloads ref. Any failure wraps ErrResourceUnavailable; 404 and 410 wrap ErrNotFound.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if !isHTTPURL(ref) {
		return nil, fmt.Errorf("%w: unsupported reference %q", ErrResourceUnavailable, ref)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", ErrResourceUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d for %s", ErrResourceUnavailable, resp.StatusCode, ref)
	}

	return readLimited(resp.Body, f.maxBytes)
}
