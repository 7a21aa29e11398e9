// Package collyfetcher implements the timed Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	MaxBodyBytes   int64
	HostRPS        float64
	HostBurst      int
}

// Fetcher implements summary.Fetcher using the Colly collector. Every
// failure is normalized to a summary.FetchError with a short reason so
// callers can report it verbatim.
type Fetcher struct {
	cfg           Config
	limiters      *hostLimiters
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// The same watch or API URL is fetched again on every new session; the
	// clone shares the visited store, so revisits must stay legal.
	c.AllowURLRevisit = true
	// Error statuses still carry bodies the sources need (consent pages,
	// innertube error payloads), so surface them as responses.
	c.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.WithTransport(&retryTransport{base: newHTTPTransport()})

	return &Fetcher{
		cfg:           cfg,
		limiters:      newHostLimiters(cfg.HostRPS, cfg.HostBurst),
		baseCollector: c,
	}
}

// Fetch executes a single HTTP exchange using Colly. GET is the default;
// request.Method selects POST for API calls carrying a body.
func (f *Fetcher) Fetch(ctx context.Context, request summary.FetchRequest) (summary.FetchResponse, error) {
	if f.limiters != nil {
		host := hostOf(request.URL)
		waitStart := time.Now()
		if err := f.limiters.wait(ctx, host); err != nil {
			return summary.FetchResponse{}, normalizeFetchError(err)
		}
		if waited := time.Since(waitStart); waited > time.Millisecond {
			metrics.ObserveRateLimitDelay(host, waited)
		}
	}

	var (
		result   summary.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request, &fetchErr); err != nil {
		metrics.ObserveFetch(request.URL, "error", 0)
		return summary.FetchResponse{}, err
	}
	metrics.ObserveFetch(request.URL, strconv.Itoa(result.StatusCode), len(result.Body))
	return result, nil
}

func (f *Fetcher) buildCollector(
	request summary.FetchRequest,
	start time.Time,
	result *summary.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()

	maxBody := f.cfg.MaxBodyBytes
	if request.MaxBodyBytes > 0 {
		maxBody = request.MaxBodyBytes
	}
	if maxBody > 0 {
		collector.MaxBodySize = int(maxBody)
	}

	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request summary.FetchRequest,
	start time.Time,
	result *summary.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		if f.cfg.AcceptLanguage != "" && r.Headers.Get("Accept-Language") == "" {
			r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
		}
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = summary.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
			Rendered:   false,
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, request summary.FetchRequest, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		if request.Method == http.MethodPost {
			done <- collector.PostRaw(request.URL, request.Body)
			return
		}
		done <- collector.Visit(request.URL)
	}()

	select {
	case <-ctx.Done():
		return normalizeFetchError(ctx.Err())
	case err := <-done:
		if err != nil {
			return normalizeFetchError(err)
		}
		if *fetchErr != nil {
			return normalizeFetchError(*fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(request summary.FetchRequest, r *colly.Request) {
	if request.Header == nil {
		return
	}
	for key, values := range request.Header {
		// Set replaces collector defaults such as the User-Agent, so a
		// caller-supplied value wins instead of being sent twice.
		for i, v := range values {
			if i == 0 {
				r.Headers.Set(key, v)
			} else {
				r.Headers.Add(key, v)
			}
		}
	}
}

// normalizeFetchError folds transport failures into short reasons suitable
// for user-facing unavailability reports.
func normalizeFetchError(err error) error {
	if err == nil {
		return nil
	}
	var alreadyNormalized *summary.FetchError
	if errors.As(err, &alreadyNormalized) {
		return alreadyNormalized
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &summary.FetchError{Reason: "timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return &summary.FetchError{Reason: "canceled"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &summary.FetchError{Reason: "timed out"}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &summary.FetchError{Reason: "host not found"}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &summary.FetchError{Reason: "connection refused"}
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return &summary.FetchError{Reason: "connection reset"}
	}
	return &summary.FetchError{Reason: rootCause(err).Error()}
}

// rootCause walks the unwrap chain so reasons skip url.Error scaffolding.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
