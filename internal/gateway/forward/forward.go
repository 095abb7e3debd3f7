// Package forward performs the real upstream HTTP call. It is the only
// component allowed to block the response path, under a per-attempt timeout
// and a bounded retry policy for upstream 429s.
package forward

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/costpilot/gateway/internal/gateway/apierr"
)

// Forwarder issues upstream calls with a 30s per-attempt timeout. A 429 is
// retried up to MaxRetries additional times with exponential backoff; any
// other non-2xx comes back immediately, and a timeout is never retried.
type Forwarder struct {
	client         *http.Client
	attemptTimeout time.Duration
	maxRetries     int
	baseBackoff    time.Duration

	// sleep is replaced in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(attemptTimeout time.Duration, maxRetries int) *Forwarder {
	return &Forwarder{
		client:         &http.Client{},
		attemptTimeout: attemptTimeout,
		maxRetries:     maxRetries,
		baseBackoff:    time.Second,
		sleep:          sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Result is a successful upstream response. Token counts are zero when the
// provider did not report usage; callers fall back to estimating.
type Result struct {
	Body         []byte
	StatusCode   int
	InputTokens  int
	OutputTokens int
	OutputText   string
}

// Do posts payload to the validated endpoint using the decrypted provider
// secret. ctx carries the client's cancellation; an in-flight attempt aborts
// promptly when the client disconnects.
func (f *Forwarder) Do(ctx context.Context, endpoint, provider, secret string, payload []byte) (*Result, error) {
	var lastRetryAfter int

	for attempt := 0; ; attempt++ {
		resp, body, err := f.attempt(ctx, endpoint, provider, secret, payload)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, apierr.RequestTimeout(err)
			}
			if ctx.Err() != nil {
				return nil, apierr.Internal(ctx.Err())
			}
			return nil, apierr.Internal(err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			inTok, outTok, text := parseResponse(provider, body)
			return &Result{
				Body:         body,
				StatusCode:   resp.StatusCode,
				InputTokens:  inTok,
				OutputTokens: outTok,
				OutputText:   text,
			}, nil
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return nil, apierr.Upstream(resp.StatusCode, truncate(string(body), 512))
		}

		lastRetryAfter = retryAfterSeconds(resp)
		if attempt >= f.maxRetries {
			if lastRetryAfter <= 0 {
				lastRetryAfter = 1
			}
			return nil, apierr.UpstreamRateLimited(lastRetryAfter)
		}

		// Backoff 1s, 2s, 4s between attempts.
		if err := f.sleep(ctx, f.baseBackoff<<attempt); err != nil {
			return nil, apierr.Internal(err)
		}
	}
}

func (f *Forwarder) attempt(ctx context.Context, endpoint, provider, secret string, payload []byte) (*http.Response, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuthHeaders(req, provider, secret)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

// setAuthHeaders attaches the provider credential the way each upstream
// expects it.
func setAuthHeaders(req *http.Request, provider, secret string) {
	switch provider {
	case "anthropic":
		req.Header.Set("x-api-key", secret)
		req.Header.Set("anthropic-version", "2023-06-01")
	case "google":
		req.Header.Set("x-goog-api-key", secret)
	default:
		req.Header.Set("Authorization", "Bearer "+secret)
	}
}

func retryAfterSeconds(resp *http.Response) int {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return secs
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
