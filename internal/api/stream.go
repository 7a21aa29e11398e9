package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/aggregate"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/archive"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/progress"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/prompt"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/stream"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// streamSummary handles GET /v1/summaries/stream?url=&refresh=. Input
// problems answer with a plain 400 before any stream bytes; everything after
// the headers travels as event-stream frames.
func (s *Server) streamSummary(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	videoID, err := summary.ParseVideoID(rawURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	refresh := parseRefresh(r.URL.Query().Get("refresh"))

	sess, err := stream.NewSession(w, stream.Options{
		HeartbeatInterval: s.cfg.Stream.HeartbeatInterval,
		GlobalDeadline:    s.cfg.Stream.GlobalTimeout,
		Clock:             s.clock,
		Logger:            s.logger,
	})
	if err != nil {
		s.logger.Error("stream setup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := s.newSessionID()
	logger := s.logger.With(
		zap.String("session_id", uuid.UUID(sessionID).String()),
		zap.String("video_id", videoID),
	)
	logger.Info("stream session opened", zap.Bool("refresh", refresh))

	start := s.clock.Now()
	metrics.IncActiveSessions()
	defer metrics.DecActiveSessions()
	s.emitEvent(progress.Event{
		SessionID: sessionID,
		TS:        start.UTC(),
		Stage:     progress.StageSessionStart,
		VideoID:   videoID,
	})

	var outcome runOutcome
	sess.Run(r.Context(), func(ctx context.Context, emit *stream.Emitter) (*stream.FinalPayload, error) {
		final, pipeErr := s.runPipeline(ctx, emit, sessionID, rawURL, videoID, refresh)
		outcome.finish(pipeErr)
		return final, pipeErr
	})

	elapsed := s.clock.Now().Sub(start)
	label, note := outcome.label(sess.State())
	metrics.ObserveSession(label)

	evt := progress.Event{
		SessionID: sessionID,
		TS:        s.clock.Now().UTC(),
		Stage:     progress.StageSessionDone,
		VideoID:   videoID,
		Dur:       elapsed,
	}
	if label != "ok" {
		evt.Stage = progress.StageSessionError
		evt.Note = note
	}
	s.emitEvent(evt)

	logger.Info("stream session closed",
		zap.String("outcome", label),
		zap.Duration("elapsed", elapsed),
	)
}

// runPipeline is the session body: cache check, signal gathering, prompt
// assembly, optional generation, persistence, and archive handoff. It runs
// on the pipeline goroutine and writes only through the emitter.
func (s *Server) runPipeline(
	ctx context.Context,
	emit *stream.Emitter,
	sessionID [16]byte,
	rawURL, videoID string,
	refresh bool,
) (*stream.FinalPayload, error) {
	emit.Progress(stream.StepValidating, "video url accepted")

	if refresh {
		emit.Progress(stream.StepCache, "refresh requested, skipping stored summary")
	} else if final, ok := s.cachedFinal(ctx, videoID); ok {
		emit.Progress(stream.StepCache, "replaying stored summary")
		return final, nil
	} else {
		emit.Progress(stream.StepCache, "no stored summary")
	}

	emit.Progress(stream.StepGathering, "collecting signals")
	gatherStart := s.clock.Now()
	bundle, err := s.gatherer.Gather(ctx, rawURL, s.sourceObserver(emit, sessionID, videoID))
	if err != nil {
		return nil, err
	}
	s.emitEvent(progress.Event{
		SessionID: sessionID,
		TS:        s.clock.Now().UTC(),
		Stage:     progress.StageGatherDone,
		VideoID:   videoID,
		Dur:       s.clock.Now().Sub(gatherStart),
	})

	emit.Progress(stream.StepPrompt, "assembling prompt")
	promptText := prompt.Build(bundle)
	s.emitEvent(progress.Event{
		SessionID: sessionID,
		TS:        s.clock.Now().UTC(),
		Stage:     progress.StagePromptBuilt,
		VideoID:   videoID,
	})

	final := &stream.FinalPayload{
		VideoURL: bundle.VideoURL,
		Sources:  bundle.AvailableSources(),
		Prompt:   promptText,
	}
	if s.producer == nil {
		return final, nil
	}

	emit.Progress(stream.StepGenerating, "generating summary")
	produceStart := s.clock.Now()
	summaryText, err := s.producer.Produce(ctx, promptText, emit.Delta)
	if err != nil {
		return nil, err
	}
	s.emitEvent(progress.Event{
		SessionID: sessionID,
		TS:        s.clock.Now().UTC(),
		Stage:     progress.StageProduceDone,
		VideoID:   videoID,
		Dur:       s.clock.Now().Sub(produceStart),
	})
	metrics.ObserveSummaryProduced()
	final.Summary = summaryText

	emit.Progress(stream.StepSaving, "saving summary")
	s.persist(ctx, bundle, final)
	s.offerArchive(sessionID, bundle, final, promptText)

	return final, nil
}

// cachedFinal replays a stored summary. The prompt text is not persisted
// (only its hash and artifact URI), so replays carry an empty prompt.
func (s *Server) cachedFinal(ctx context.Context, videoID string) (*stream.FinalPayload, bool) {
	cached, err := s.store.Get(ctx, videoID)
	switch {
	case err == nil:
		metrics.ObserveCacheLookup("hit")
		return &stream.FinalPayload{
			VideoURL: cached.VideoURL,
			Sources:  cached.Sources,
			Summary:  cached.Summary,
		}, true
	case errors.Is(err, summary.ErrNotFound):
		metrics.ObserveCacheLookup("miss")
	default:
		metrics.ObserveCacheLookup("error")
		s.logger.Warn("summary lookup failed", zap.String("video_id", videoID), zap.Error(err))
	}
	return nil, false
}

// sourceObserver bridges gather settlements onto the wire and the progress
// hub. Callbacks arrive on the gathering goroutine in settlement order.
func (s *Server) sourceObserver(emit *stream.Emitter, sessionID [16]byte, videoID string) aggregate.Observer {
	return func(ev aggregate.SourceEvent) {
		evt := progress.Event{
			SessionID: sessionID,
			TS:        s.clock.Now().UTC(),
			VideoID:   videoID,
			Source:    ev.Source,
			Dur:       ev.Duration,
		}
		if ev.OK {
			emit.Progress(stream.SourceStep(ev.Source), "done")
			evt.Stage = progress.StageSourceDone
		} else {
			emit.Progress(stream.SourceStep(ev.Source), ev.Detail)
			evt.Stage = progress.StageSourceError
			evt.Note = ev.Detail
		}
		s.emitEvent(evt)
	}
}

// persist stores the finished summary. A failed save costs the cache, not
// the session; the client already holds the streamed result.
func (s *Server) persist(ctx context.Context, bundle *summary.SignalBundle, final *stream.FinalPayload) {
	now := s.clock.Now()
	record := summary.StoredSummary{
		VideoID:   bundle.VideoID,
		VideoURL:  bundle.VideoURL,
		Summary:   final.Summary,
		Model:     s.cfg.Producer.Model,
		Sources:   final.Sources,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, record); err != nil {
		s.logger.Warn("save summary failed", zap.String("video_id", bundle.VideoID), zap.Error(err))
	}
}

// offerArchive hands the finished session to the archive pool. Shedding on a
// full queue is handled inside Offer.
func (s *Server) offerArchive(sessionID [16]byte, bundle *summary.SignalBundle, final *stream.FinalPayload, promptText string) {
	if s.archiver == nil {
		return
	}
	s.archiver.Offer(archive.Job{
		SessionID: sessionID,
		VideoID:   bundle.VideoID,
		VideoURL:  bundle.VideoURL,
		Prompt:    promptText,
		Summary:   final.Summary,
		Model:     s.cfg.Producer.Model,
		Sources:   final.Sources,
	})
}

func (s *Server) emitEvent(evt progress.Event) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(evt)
}

// newSessionID draws the session UUID used for progress correlation.
func (s *Server) newSessionID() [16]byte {
	if s.idGen != nil {
		if raw, err := s.idGen.NewID(); err == nil {
			if id, parseErr := uuid.Parse(raw); parseErr == nil {
				return progress.UUIDToBytes(id)
			}
		}
	}
	return progress.UUIDToBytes(uuid.New())
}

func parseRefresh(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

// runOutcome records how the pipeline ended. The session can return before
// the pipeline goroutine finishes (deadline, disconnect), so reads share a
// mutex with the pipeline's final write.
type runOutcome struct {
	mu   sync.Mutex
	done bool
	err  error
}

func (o *runOutcome) finish(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = true
	o.err = err
}

// label maps the terminal session state plus the pipeline result to a
// metrics outcome and a progress note.
func (o *runOutcome) label(state stream.State) (string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case state == stream.StateAborted:
		return "aborted", "client disconnected"
	case !o.done:
		return "timeout", "deadline exceeded"
	case o.err != nil:
		return "error", summary.Reason(o.err)
	}
	return "ok", ""
}
