package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
)

func TestRetryTransportRetriesTransientTimeouts(t *testing.T) {
	t.Parallel()
	metrics.Init()

	base := &stubRoundTripper{
		results: []roundTripResult{
			{err: context.DeadlineExceeded},
			{resp: httptest.NewRecorder().Result()},
		},
	}
	transport := &retryTransport{base: base}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/watch", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip returned error: %v", err)
	}
	if cerr := resp.Body.Close(); cerr != nil {
		t.Fatalf("resp close: %v", cerr)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", base.calls)
	}
}

func TestRetryTransportGivesUpAfterBackoffs(t *testing.T) {
	t.Parallel()
	metrics.Init()

	base := &stubRoundTripper{
		results: []roundTripResult{
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
		},
	}
	transport := &retryTransport{base: base}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/watch", nil)
	if _, err := transport.RoundTrip(req); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if base.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", base.calls)
	}
}

func TestRetryTransportSkipsRequestsWithBody(t *testing.T) {
	t.Parallel()
	metrics.Init()

	base := &stubRoundTripper{
		results: []roundTripResult{
			{err: context.DeadlineExceeded},
		},
	}
	transport := &retryTransport{base: base}

	req := httptest.NewRequest(http.MethodPost, "https://example.com/api", http.NoBody)
	if _, err := transport.RoundTrip(req); err == nil {
		t.Fatal("expected error to pass through without retry")
	}
	if base.calls != 1 {
		t.Fatalf("expected single attempt for request with body, got %d", base.calls)
	}
}

func TestHostLimitersDisabledWhenRPSNotPositive(t *testing.T) {
	t.Parallel()

	if l := newHostLimiters(0, 5); l != nil {
		t.Fatal("expected nil limiters for zero rps")
	}
	if l := newHostLimiters(-1, 5); l != nil {
		t.Fatal("expected nil limiters for negative rps")
	}
}

func TestHostLimitersWaitPerHost(t *testing.T) {
	t.Parallel()

	l := newHostLimiters(1, 1)
	ctx := context.Background()

	// First token per host is free; a second token on the same host waits.
	if err := l.wait(ctx, "a.example.com"); err != nil {
		t.Fatalf("wait a: %v", err)
	}
	if err := l.wait(ctx, "b.example.com"); err != nil {
		t.Fatalf("wait b: %v", err)
	}

	start := time.Now()
	if err := l.wait(ctx, "a.example.com"); err != nil {
		t.Fatalf("second wait a: %v", err)
	}
	if waited := time.Since(start); waited < 500*time.Millisecond {
		t.Fatalf("expected second token on same host to wait about 1s, waited %v", waited)
	}
}

func TestHostLimitersWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := newHostLimiters(0.001, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.wait(ctx, "slow.example.com"); err != nil {
		t.Fatalf("first token should be free: %v", err)
	}
	if err := l.wait(ctx, "slow.example.com"); err == nil {
		t.Fatal("expected context deadline to interrupt wait")
	}
}

type roundTripResult struct {
	resp *http.Response
	err  error
}

type stubRoundTripper struct {
	results []roundTripResult
	calls   int
}

func (s *stubRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	defer func() { s.calls++ }()
	if len(s.results) == 0 {
		return nil, context.DeadlineExceeded
	}
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	res := s.results[idx]
	return res.resp, res.err
}
