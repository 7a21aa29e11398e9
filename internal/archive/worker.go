package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/progress"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// Config controls artifact layout and notifications.
type Config struct {
	ContentType string
	Prefix      string
	Topic       string
}

// Worker consumes archive jobs. For each job it content-addresses the
// prompt, writes the prompt and summary artifacts, records their URIs on the
// stored summary, and publishes a completion notification.
type Worker struct {
	queue     *Queue
	store     summary.SummaryStore
	artifacts summary.ArtifactStore
	notifier  summary.Notifier
	hasher    summary.Hasher
	clock     summary.Clock
	emitter   progress.Emitter
	cfg       Config
	logger    *zap.Logger
}

// NewWorker constructs a Worker. notifier and emitter may be nil.
func NewWorker(
	queue *Queue,
	store summary.SummaryStore,
	artifacts summary.ArtifactStore,
	notifier summary.Notifier,
	hasher summary.Hasher,
	clock summary.Clock,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/plain; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		store:     store,
		artifacts: artifacts,
		notifier:  notifier,
		hasher:    hasher,
		clock:     clock,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming jobs until the context finishes or the queue closes
// and drains.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued archive job", zap.String("video_id", job.VideoID))
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	start := w.clock.Now()
	if err := w.archive(ctx, job); err != nil {
		metrics.ObserveArchiveJob("error")
		w.emit(progress.Event{
			SessionID: job.SessionID,
			TS:        w.clock.Now(),
			Stage:     progress.StageArchiveError,
			VideoID:   job.VideoID,
			Note:      err.Error(),
		})
		w.logger.Error("archive job failed", zap.String("video_id", job.VideoID), zap.Error(err))
		return
	}
	metrics.ObserveArchiveJob("ok")
	w.emit(progress.Event{
		SessionID: job.SessionID,
		TS:        w.clock.Now(),
		Stage:     progress.StageArchiveDone,
		VideoID:   job.VideoID,
		Dur:       w.clock.Now().Sub(start),
	})
}

func (w *Worker) archive(ctx context.Context, job Job) error {
	hash, err := w.hasher.Hash([]byte(job.Prompt))
	if err != nil {
		return fmt.Errorf("hash prompt: %w", err)
	}

	promptPath := w.buildBlobPath(job.VideoID, "prompt-"+hash+".txt")
	promptURI, err := w.artifacts.PutObject(ctx, promptPath, w.cfg.ContentType, []byte(job.Prompt))
	if err != nil {
		return fmt.Errorf("put prompt object: %w", err)
	}

	summaryPath := w.buildBlobPath(job.VideoID, "summary-"+hash+".txt")
	summaryURI, err := w.artifacts.PutObject(ctx, summaryPath, w.cfg.ContentType, []byte(job.Summary))
	if err != nil {
		return fmt.Errorf("put summary object: %w", err)
	}

	if err := w.recordURIs(ctx, job, hash, promptURI, summaryURI); err != nil {
		return err
	}
	if err := w.publishResult(ctx, job, hash, promptURI, summaryURI); err != nil {
		return err
	}

	w.logger.Info("summary archived",
		zap.String("video_id", job.VideoID),
		zap.String("prompt_uri", promptURI),
		zap.String("summary_uri", summaryURI),
		zap.String("hash", hash),
	)
	return nil
}

// recordURIs points the stored summary at the freshly written artifacts. The
// record can vanish between the session save and the archive run; a missing
// record is skipped rather than resurrected.
func (w *Worker) recordURIs(ctx context.Context, job Job, hash, promptURI, summaryURI string) error {
	stored, err := w.store.Get(ctx, job.VideoID)
	if err != nil {
		if errors.Is(err, summary.ErrNotFound) {
			w.logger.Warn("summary record gone, skipping uri update", zap.String("video_id", job.VideoID))
			return nil
		}
		return fmt.Errorf("load summary record: %w", err)
	}

	stored.PromptHash = hash
	stored.PromptURI = promptURI
	stored.SummaryURI = summaryURI
	stored.UpdatedAt = w.clock.Now()
	if err := w.store.Save(ctx, stored); err != nil {
		return fmt.Errorf("save summary record: %w", err)
	}
	return nil
}

func (w *Worker) publishResult(ctx context.Context, job Job, hash, promptURI, summaryURI string) error {
	if w.cfg.Topic == "" || w.notifier == nil {
		return nil
	}
	payload := map[string]any{
		"video_id":    job.VideoID,
		"video_url":   job.VideoURL,
		"prompt_uri":  promptURI,
		"summary_uri": summaryURI,
		"hash":        hash,
		"model":       job.Model,
		"sources":     job.Sources,
		"timestamp":   w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.notifier.Notify(ctx, w.cfg.Topic, payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (w *Worker) buildBlobPath(videoID, name string) string {
	prefix := strings.Trim(w.cfg.Prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s", videoID, name)
	}
	return fmt.Sprintf("%s/%s/%s", prefix, videoID, name)
}

func (w *Worker) emit(evt progress.Event) {
	if w.emitter == nil {
		return
	}
	w.emitter.Emit(evt)
}
