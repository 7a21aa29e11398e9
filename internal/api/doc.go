// Package api hosts the HTTP server, middleware, and handlers for the
// summarizer service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/summaries/stream for the event-stream summarization session.
//   - GET and DELETE /v1/videos/{video_id}/summary for stored summaries.
package api
