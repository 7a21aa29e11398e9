package collyfetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "summarizer-agent", Timeout: time.Second, MaxBodyBytes: 1024})
	req := summary.FetchRequest{
		URL:          "https://example.com",
		MaxBodyBytes: 64,
	}

	collector := f.buildCollector(req, time.Unix(0, 0), &summary.FetchResponse{}, new(error))
	if collector.UserAgent != "summarizer-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.IgnoreRobotsTxt {
		t.Fatal("expected robots txt to be ignored")
	}
	if !collector.AllowURLRevisit {
		t.Fatal("expected URL revisits to be allowed")
	}
	if !collector.ParseHTTPErrorResponse {
		t.Fatal("expected error responses to be parsed")
	}
	if collector.MaxBodySize != 64 {
		t.Fatalf("expected request body cap to win, got %d", collector.MaxBodySize)
	}

	collector = f.buildCollector(summary.FetchRequest{URL: "https://example.com"}, time.Unix(0, 0), &summary.FetchResponse{}, new(error))
	if collector.MaxBodySize != 1024 {
		t.Fatalf("expected config body cap, got %d", collector.MaxBodySize)
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{AcceptLanguage: "en"})
	req := summary.FetchRequest{
		URL:    "https://example.com",
		Header: http.Header{"X-Trace": {"yes"}},
	}
	start := time.Unix(0, 0)
	var result summary.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, start, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("X-Trace") != "yes" {
		t.Fatalf("expected header propagation, got %+v", collyReq.Headers)
	}
	if collyReq.Headers.Get("Accept-Language") != "en" {
		t.Fatalf("expected accept-language default, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	if result.StatusCode != http.StatusCreated || string(result.Body) != "body" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Headers.Get("X-Resp") != "ok" {
		t.Fatalf("expected headers copied, got %+v", result.Headers)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func TestFetchRoundTrip(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("X-Marker", "watch")
			_, _ = io.WriteString(w, "<html>watch page</html>")
		case "/missing":
			http.Error(w, "nope", http.StatusNotFound)
		case "/api":
			body, _ := io.ReadAll(r.Body)
			if r.Method != http.MethodPost {
				http.Error(w, "want POST", http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		}
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "summarizer-test", Timeout: 5 * time.Second})
	ctx := context.Background()

	resp, err := f.Fetch(ctx, summary.FetchRequest{URL: srv.URL + "/page"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "<html>watch page</html>" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Headers.Get("X-Marker") != "watch" {
		t.Fatalf("expected response headers, got %+v", resp.Headers)
	}
	if resp.Rendered {
		t.Fatal("plain fetch must not be marked rendered")
	}

	// The same URL must be fetchable again on a later session.
	if _, err := f.Fetch(ctx, summary.FetchRequest{URL: srv.URL + "/page"}); err != nil {
		t.Fatalf("repeat Fetch() error = %v", err)
	}

	// Error statuses surface as responses, not errors.
	resp, err = f.Fetch(ctx, summary.FetchRequest{URL: srv.URL + "/missing"})
	if err != nil {
		t.Fatalf("Fetch(404) error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 passthrough, got %d", resp.StatusCode)
	}

	// POST carries the body through.
	resp, err = f.Fetch(ctx, summary.FetchRequest{
		URL:    srv.URL + "/api",
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"videoId":"abc"}`),
	})
	if err != nil {
		t.Fatalf("Fetch(POST) error = %v", err)
	}
	if string(resp.Body) != `{"videoId":"abc"}` {
		t.Fatalf("expected echoed body, got %q", resp.Body)
	}
}

func TestFetchContextTimeout(t *testing.T) {
	t.Parallel()
	metrics.Init()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, summary.FetchRequest{URL: srv.URL})
	var fetchErr *summary.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Reason != "timed out" {
		t.Fatalf("expected reason %q, got %q", "timed out", fetchErr.Reason)
	}
}

func TestNormalizeFetchError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: "timed out"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{
			name: "wrapped url error",
			err:  &url.Error{Op: "Get", URL: "https://example.com", Err: errors.New("connection refused")},
			want: "connection refused",
		},
		{
			name: "already normalized",
			err:  &summary.FetchError{Reason: "status 500"},
			want: "status 500",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			normalized := normalizeFetchError(tt.err)
			var fetchErr *summary.FetchError
			if !errors.As(normalized, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", normalized)
			}
			if fetchErr.Reason != tt.want {
				t.Fatalf("expected reason %q, got %q", tt.want, fetchErr.Reason)
			}
		})
	}

	if normalizeFetchError(nil) != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(summary.FetchRequest{}, collyReq)
	if len(*collyReq.Headers) != 0 {
		t.Fatalf("expected no headers to be copied, got %+v", *collyReq.Headers)
	}
}

func TestCopyHeadersReplacesCollectorDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "default-agent"})
	collyReq := &colly.Request{Headers: &http.Header{}}
	collyReq.Headers.Set("User-Agent", "default-agent")

	f.copyHeaders(summary.FetchRequest{
		Header: http.Header{
			"User-Agent": {"android-client"},
			"X-Multi":    {"one", "two"},
		},
	}, collyReq)

	if got := collyReq.Headers.Values("User-Agent"); len(got) != 1 || got[0] != "android-client" {
		t.Fatalf("User-Agent = %v, want exactly one override value", got)
	}
	if got := collyReq.Headers.Values("X-Multi"); len(got) != 2 {
		t.Fatalf("X-Multi = %v, want both values kept", got)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
