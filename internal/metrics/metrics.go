// Package metrics exposes Prometheus collectors for the summarizer service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal            *prometheus.CounterVec
	fetchBytesTotal         *prometheus.CounterVec
	fetchRetriesTotal       prometheus.Counter
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	sourceResultsTotal      *prometheus.CounterVec
	sourceLatencySeconds    *prometheus.HistogramVec
	sessionsTotal           *prometheus.CounterVec
	activeSessions          prometheus.Gauge
	rateLimitDelaysSeconds  *prometheus.HistogramVec
	archiveJobsTotal        *prometheus.CounterVec
	producerRequestsTotal   *prometheus.CounterVec
	progressEventsTotal     *prometheus.CounterVec
	progressDroppedTotal    prometheus.Counter
	transcriptProviderWins  *prometheus.CounterVec
	summariesProducedTotal  prometheus.Counter
	summaryCacheLookupTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_fetches_total",
				Help: "Total number of outbound fetches, labeled by host and status.",
			},
			[]string{"host", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_fetch_bytes_total",
				Help: "Total number of response bytes fetched, labeled by host.",
			},
			[]string{"host"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "summarizer_fetch_retries_total",
				Help: "Total transient transport retries during outbound fetches.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"method", "route"},
		)

		sourceResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_source_results_total",
				Help: "Signal source settlements, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		sourceLatencySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "summarizer_source_latency_seconds",
				Help:    "Histogram of per-source gather latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"source"},
		)

		sessionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_sessions_total",
				Help: "Total streaming sessions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "summarizer_active_sessions",
				Help: "Number of streaming sessions currently open.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "summarizer_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		archiveJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_archive_jobs_total",
				Help: "Total archive jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		producerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_producer_requests_total",
				Help: "Total producer API calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		progressEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_progress_events_total",
				Help: "Progress events observed on the hub, labeled by step.",
			},
			[]string{"step"},
		)

		progressDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "summarizer_progress_dropped_total",
				Help: "Progress events dropped because the hub buffer was full.",
			},
		)

		transcriptProviderWins = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_transcript_provider_wins_total",
				Help: "Transcript race wins, labeled by provider.",
			},
			[]string{"provider"},
		)

		summariesProducedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "summarizer_summaries_produced_total",
				Help: "Total summaries produced end to end.",
			},
		)

		summaryCacheLookupTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_summary_cache_lookups_total",
				Help: "Stored summary lookups before gathering, labeled by result.",
			},
			[]string{"result"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one outbound fetch result.
func ObserveFetch(site string, status string, bytesFetched int) {
	host := SanitizeSite(site)
	fetchesTotal.WithLabelValues(host, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(host).Add(float64(bytesFetched))
	}
}

// ObserveFetchRetry increments the transient retry counter.
func ObserveFetchRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSource records one signal source settlement.
func ObserveSource(source, outcome string, duration time.Duration) {
	sourceResultsTotal.WithLabelValues(source, outcome).Inc()
	sourceLatencySeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveSession increments the session counter for the given outcome.
func ObserveSession(outcome string) {
	sessionsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveSessions increments the open session gauge.
func IncActiveSessions() {
	activeSessions.Inc()
}

// DecActiveSessions decrements the open session gauge.
func DecActiveSessions() {
	activeSessions.Dec()
}

// ObserveRateLimitDelay records the duration of a host limiter wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveArchiveJob increments the archive job counter for the given status.
func ObserveArchiveJob(status string) {
	archiveJobsTotal.WithLabelValues(status).Inc()
}

// ObserveProducerRequest increments the producer call counter.
func ObserveProducerRequest(outcome string) {
	producerRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProgressEvent counts one progress event by step.
func ObserveProgressEvent(step string) {
	progressEventsTotal.WithLabelValues(step).Inc()
}

// ObserveProgressDropped counts a progress event lost to backpressure.
func ObserveProgressDropped() {
	progressDroppedTotal.Inc()
}

// ObserveTranscriptWin records which provider won the transcript race.
func ObserveTranscriptWin(provider string) {
	transcriptProviderWins.WithLabelValues(provider).Inc()
}

// ObserveSummaryProduced counts one finished summary.
func ObserveSummaryProduced() {
	summariesProducedTotal.Inc()
}

// ObserveCacheLookup records a stored summary lookup result (hit or miss).
func ObserveCacheLookup(result string) {
	summaryCacheLookupTotal.WithLabelValues(result).Inc()
}
