package forward

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/costpilot/gateway/internal/gateway/apierr"
)

// newTestForwarder returns a forwarder whose sleeps are recorded instead of
// performed.
func newTestForwarder(maxRetries int) (*Forwarder, *[]time.Duration) {
	var slept []time.Duration
	f := New(30*time.Second, maxRetries)
	f.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return f, &slept
}

func TestRetryOn429ThenSuccess(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	}))
	defer srv.Close()

	f, slept := newTestForwarder(3)
	res, err := f.Do(context.Background(), srv.URL, "openai", "sk-test", []byte(`{}`))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 4 {
		t.Fatalf("attempts = %d, want 4", attempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("backoffs = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Fatalf("backoffs = %v, want %v", *slept, want)
		}
	}
	if res.InputTokens != 10 || res.OutputTokens != 5 || res.OutputText != "hi" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, _ := newTestForwarder(3)
	_, err := f.Do(context.Background(), srv.URL, "openai", "sk-test", []byte(`{}`))

	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != apierr.CodeUpstreamRateLimited {
		t.Fatalf("err = %v, want upstream_rate_limited", err)
	}
	if ae.RetryAfter != 7 {
		t.Fatalf("RetryAfter = %d, want header value 7", ae.RetryAfter)
	}
	if attempts != 4 {
		t.Fatalf("attempts = %d, want 4", attempts)
	}
}

func TestNon429ErrorNotRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad model"}`))
	}))
	defer srv.Close()

	f, slept := newTestForwarder(3)
	_, err := f.Do(context.Background(), srv.URL, "openai", "sk-test", []byte(`{}`))

	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != apierr.CodeUpstreamError {
		t.Fatalf("err = %v, want upstream_error", err)
	}
	if attempts != 1 || len(*slept) != 0 {
		t.Fatalf("attempts = %d, sleeps = %v; non-429 must not retry", attempts, *slept)
	}
}

func TestAttemptTimeoutNotRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		// Drain the body: the server only notices the client hanging up (and
		// cancels r.Context()) once the request body has been consumed.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := New(50*time.Millisecond, 3)
	_, err := f.Do(context.Background(), srv.URL, "openai", "sk-test", []byte(`{}`))

	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != apierr.CodeRequestTimeout {
		t.Fatalf("err = %v, want request_timeout", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, timeouts must not retry", attempts)
	}
}

func TestClientCancellationAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	f := New(30*time.Second, 3)
	start := time.Now()
	_, err := f.Do(ctx, srv.URL, "openai", "sk-test", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error after client cancellation")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("cancellation did not abort the in-flight call promptly")
	}
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Code == apierr.CodeRequestTimeout {
		t.Fatal("client cancellation misreported as a timeout")
	}
}

func TestAuthHeadersPerProvider(t *testing.T) {
	var gotAuth, gotAPIKey, gotGoog string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("x-api-key")
		gotGoog = r.Header.Get("x-goog-api-key")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f, _ := newTestForwarder(0)
	ctx := context.Background()

	f.Do(ctx, srv.URL, "openai", "sk-oai", []byte(`{}`))
	if gotAuth != "Bearer sk-oai" {
		t.Fatalf("openai auth header = %q", gotAuth)
	}

	f.Do(ctx, srv.URL, "anthropic", "sk-ant", []byte(`{}`))
	if gotAPIKey != "sk-ant" {
		t.Fatalf("anthropic x-api-key = %q", gotAPIKey)
	}

	f.Do(ctx, srv.URL, "google", "sk-goog", []byte(`{}`))
	if gotGoog != "sk-goog" {
		t.Fatalf("google x-goog-api-key = %q", gotGoog)
	}
}
