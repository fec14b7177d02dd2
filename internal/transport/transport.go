// Package transport provides HTTP round trippers shared by the model provider clients.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// DefaultMaxRateLimitRetries is how many 429 responses a request may be retried after
const DefaultMaxRateLimitRetries = 5

// RateLimitedTransport retries requests rejected with 429 Too Many Requests after the delay named by the
// retry-after header. Responses without a usable retry-after header are returned to the caller as-is.
type RateLimitedTransport struct {
	base       http.RoundTripper
	maxRetries int
	logger     *slog.Logger
}

func WithRateLimiting(base http.RoundTripper) *RateLimitedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RateLimitedTransport{
		base:       base,
		maxRetries: DefaultMaxRateLimitRetries,
		logger:     slog.Default(),
	}
}

// WithLogger sets the logger rate limit waits are reported to
func (t *RateLimitedTransport) WithLogger(logger *slog.Logger) *RateLimitedTransport {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// WithMaxRetries bounds how many times one request is retried
func (t *RateLimitedTransport) WithMaxRetries(n int) *RateLimitedTransport {
	t.maxRetries = n
	return t
}

// RoundTrip sends a fresh clone of req for every attempt; req itself is never modified
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Read the body once so every attempt can replay it
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		err = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to close request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(req.Context())
		if bodyBytes != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			attemptReq.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(bodyBytes)), nil
			}
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			return resp, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= t.maxRetries {
			return resp, nil
		}

		waitDuration := parseRetryAfter(resp.Header.Get("retry-after"), time.Now())
		if waitDuration <= 0 {
			return resp, nil
		}

		// Close the response body to free resources
		err = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to close response body: %w", err)
		}

		t.logger.Warn("rate limited, waiting before retry",
			"url", req.URL.Redacted(),
			"wait", waitDuration,
			"attempt", attempt+1,
		)
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(waitDuration):
		}
	}
}

// parseRetryAfter accepts either a number of seconds or any HTTP date format
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := http.ParseTime(value); err == nil {
		return retryTime.Sub(now)
	}
	return 0
}
