package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/aggregate"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/archive"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/config"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/progress"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/ratelimit"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// storeTimeout bounds the store calls made by the plain REST handlers. The
// streaming pipeline carries its own deadlines.
const storeTimeout = 3 * time.Second

// Gatherer produces the signal bundle for one video URL.
type Gatherer interface {
	Gather(ctx context.Context, videoURL string, observe aggregate.Observer) (*summary.SignalBundle, error)
}

// Server wires HTTP handlers to the summarization pipeline and stores.
type Server struct {
	router   chi.Router
	gatherer Gatherer
	store    summary.SummaryStore
	producer summary.TextProducer
	archiver *archive.Pool
	emitter  progress.Emitter
	idGen    summary.IDGenerator
	clock    summary.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. producer,
// archiver, emitter, and limiter may be nil when the matching feature is
// disabled; the stream route degrades accordingly.
func NewServer(
	gatherer Gatherer,
	store summary.SummaryStore,
	producer summary.TextProducer,
	archiver *archive.Pool,
	emitter progress.Emitter,
	limiter *ratelimit.Limiter,
	idGen summary.IDGenerator,
	clock summary.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		gatherer: gatherer,
		store:    store,
		producer: producer,
		archiver: archiver,
		emitter:  emitter,
		idGen:    idGen,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	if cfg.Server.APIKey != "" {
		r.Use(apiKeyMiddleware(cfg.Server.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// No http.TimeoutHandler here: its ResponseWriter cannot flush, which
	// would stall the event-stream route. The session enforces the global
	// deadline itself.
	r.Route("/v1", func(r chi.Router) {
		if limiter != nil {
			r.Use(ratelimit.Middleware(limiter, s.logger))
		}
		r.Get("/summaries/stream", s.streamSummary)
		r.Route("/videos/{video_id}", func(r chi.Router) {
			r.Get("/summary", s.getSummary)
			r.Delete("/summary", s.deleteSummary)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// getSummary handles GET /v1/videos/{video_id}/summary. It returns
// {"summary": {...}} on success, 404 when nothing is stored for the video,
// or 500 if the store call fails.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	sum, err := s.store.Get(ctx, videoID)
	if err != nil {
		if errors.Is(err, summary.ErrNotFound) {
			writeError(w, http.StatusNotFound, "summary not found")
			return
		}
		s.logger.Error("load summary failed", zap.String("video_id", videoID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": sum})
}

// deleteSummary handles DELETE /v1/videos/{video_id}/summary. Deletion is
// idempotent; removing an absent summary still answers 204.
func (s *Server) deleteSummary(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, videoID); err != nil {
		s.logger.Error("delete summary failed", zap.String("video_id", videoID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete summary")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// apiKeyMiddleware guards every route when an API key is configured. The
// query parameter form exists for EventSource clients, which cannot set
// request headers.
func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures the status code for the request log. Flush and
// Unwrap keep the event-stream route working behind the wrapper.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write json response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
