package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/progress"
)

// PrometheusSink exports pipeline progress metrics via Prometheus. It owns all
// collectors for sessions started/completed/running and per-source counters.
type PrometheusSink struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	sessionsRunning   prometheus.Gauge
	sessionRuntime    *prometheus.HistogramVec

	sourceResults *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec

	tracker *sessionTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "summarizer_pipeline_sessions_started_total",
			Help: "Total streaming sessions that have started.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summarizer_pipeline_sessions_completed_total",
			Help: "Total streaming sessions completed partitioned by result.",
		}, []string{"result"}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "summarizer_pipeline_sessions_running",
			Help: "Current number of running streaming sessions.",
		}),
		sessionRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "summarizer_pipeline_session_runtime_seconds",
			Help:    "Wall time per completed streaming session.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"result"}),
		sourceResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summarizer_pipeline_source_results_total",
			Help: "Signal source settlements partitioned by source and result.",
		}, []string{"source", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "summarizer_pipeline_stage_duration_seconds",
			Help:    "Stage completion latency partitioned by pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		tracker: newSessionTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsCompleted,
		s.sessionsRunning,
		s.sessionRuntime,
		s.sourceResults,
		s.stageDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSessionStart, progress.StageSessionDone, progress.StageSessionError:
		s.handleSessionEvent(evt)
	case progress.StageSourceDone:
		s.handleSourceEvent(evt, "ok")
	case progress.StageSourceError:
		s.handleSourceEvent(evt, "error")
	case progress.StageGatherDone:
		s.observeStage("gather", evt)
	case progress.StagePromptBuilt:
		s.observeStage("prompt", evt)
	case progress.StageProduceDone:
		s.observeStage("produce", evt)
	case progress.StageArchiveDone, progress.StageArchiveError:
		s.observeStage("archive", evt)
	}
}

func (s *PrometheusSink) handleSessionEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSessionStart:
		s.sessionsStarted.Inc()
		if s.tracker.start(evt.SessionID) {
			s.sessionsRunning.Inc()
		}
	case progress.StageSessionDone:
		s.sessionsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageSessionError:
		s.sessionsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if evt.Stage != progress.StageSessionStart && s.tracker.complete(evt.SessionID) {
		s.sessionsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.sessionRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleSourceEvent(evt progress.Event, result string) {
	source := evt.Source
	if source == "" {
		source = "unknown"
	}
	s.sourceResults.WithLabelValues(source, result).Inc()
	if evt.Dur > 0 {
		s.stageDuration.WithLabelValues("source").Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeStage(stage string, evt progress.Event) {
	if evt.Dur > 0 {
		s.stageDuration.WithLabelValues(stage).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type sessionTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{running: make(map[[16]byte]struct{})}
}

func (t *sessionTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *sessionTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
