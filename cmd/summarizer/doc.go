// Package main hosts the summarizer service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, stored-summary CRUD, and the
//     GET /v1/summaries/stream endpoint. A stream request opens a server-sent event session that
//     reports pipeline progress, model deltas, and a single final payload before the [DONE] sentinel.
//   - Signal gathering: internal/aggregate fans out over oEmbed, the watch page, comment threads,
//     and a transcript provider race. Sources settle independently; failures become reasons in the
//     bundle's Missing map. The watch page is fetched once and shared by the metadata parse and the
//     transcript scrape provider.
//   - Fetch pipeline: a Colly-based fetcher with per-host token buckets performs all plain HTTP
//     exchanges; watch pages stuck behind consent interstitials are optionally promoted to a
//     headless Chromedp fetch.
//   - Persistence & fanout: finished summaries are cached in the configured SummaryStore
//     (memory/Postgres). When archiving is enabled, a bounded queue and worker pool write prompt
//     and summary artifacts to the blob store (memory/GCS), record their URIs, and publish a
//     Pub/Sub notification when a topic is configured. Progress events are batched through a hub
//     into the log and Prometheus sinks.
//   - Configuration & plumbing: Viper populates config from env/files with the SUMMARIZER_ prefix;
//     zap provides structured logging; Prometheus metrics are exported via the metrics middleware
//     and the /metrics handler.
//
// Operational notes:
//   - Concurrency model: one goroutine per streaming session owns all writes to its connection;
//     pipeline work happens on a separate goroutine and hands frames over a channel. Source fetches
//     fan out per session and are bounded by sources.gather_timeout inside the session's
//     stream.global_timeout.
//   - Rate limiting: outbound fetches share per-host token buckets (sources.host_rps); inbound
//     summary requests are throttled per client IP under /v1 when ratelimit.enabled is set, with
//     Retry-After on 429 responses.
//   - Observability: zap logs carry session and video IDs at key transitions; Prometheus
//     counters/histograms track HTTP activity, source settlements, transcript race wins, cache
//     lookups, and archive jobs. Tracing is not wired in.
//   - Shutdown: the process reacts to SIGTERM; the HTTP server drains, then queued archive jobs
//     finish (bounded by the shutdown timeout), the progress hub flushes, and clients close.
//
// Quick checklist:
//   - Configure env vars: SUMMARIZER_SERVER_PORT, SUMMARIZER_STREAM_GLOBAL_TIMEOUT,
//     SUMMARIZER_PRODUCER_ENABLED plus SUMMARIZER_PRODUCER_API_KEY for real summaries,
//     SUMMARIZER_STORE_DRIVER=postgres with SUMMARIZER_STORE_POSTGRES_DSN for a durable cache, and
//     SUMMARIZER_ARCHIVE_* / SUMMARIZER_NOTIFY_* when artifact archiving is required.
//   - Run locally: go run ./cmd/summarizer -config config.yaml (or rely solely on env overrides).
//     Without a producer key the stream stops after the prompt frame, which is enough to exercise
//     the gathering pipeline.
package main
