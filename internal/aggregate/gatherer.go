// Package aggregate fans out over every signal source for a video and
// settles them all into one SignalBundle. Sources fail independently; the
// gather itself only fails when the URL is unusable or every core signal
// came back empty.
package aggregate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/sources"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// Config bounds one gather run.
type Config struct {
	// Timeout caps the whole fan-out, on top of per-source timeouts.
	Timeout time.Duration
	// TranscriptMaxChars middle-out truncates oversized transcripts.
	TranscriptMaxChars int
}

// SourceEvent reports one source settling during a gather.
type SourceEvent struct {
	Source   string
	OK       bool
	Detail   string
	Duration time.Duration
}

// Observer receives source settlements in arrival order. Callbacks run on
// the gathering goroutine and must not block.
type Observer func(SourceEvent)

// Client is the slice of the sources client the gatherer needs.
type Client interface {
	FetchOEmbed(ctx context.Context, videoID string) (*summary.OEmbed, error)
	FetchWatchPage(ctx context.Context, videoID string) ([]byte, bool, error)
	FetchComments(ctx context.Context, videoID string) ([]summary.Comment, error)
}

// Gatherer gathers all signals for a video.
type Gatherer struct {
	client   Client
	resolver summary.TranscriptResolver
	cfg      Config
	logger   *zap.Logger
}

// New builds a Gatherer over the shared sources client and transcript
// resolver.
func New(client Client, resolver summary.TranscriptResolver, cfg Config, logger *zap.Logger) *Gatherer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatherer{
		client:   client,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.Named("gather"),
	}
}

// settled carries one source's outcome back to the collector. apply writes
// the data into the bundle so all bundle mutation happens on one goroutine.
type settled struct {
	source string
	apply  func(*summary.SignalBundle)
	err    error
	took   time.Duration
}

// Gather validates the URL, launches every source concurrently and waits for
// all of them. One source failing never aborts the others; its reason lands
// in the bundle's Missing map instead. The watch page is fetched once and
// shared between the metadata parse and the transcript scrape provider.
func (g *Gatherer) Gather(ctx context.Context, videoURL string, observe Observer) (*summary.SignalBundle, error) {
	videoID, err := summary.ParseVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	bundle := &summary.SignalBundle{
		VideoID:  videoID,
		VideoURL: summary.WatchURL(videoID),
		Missing:  map[string]string{},
	}

	page := summary.NewPageCell()
	go func() {
		body, rendered, err := g.client.FetchWatchPage(ctx, videoID)
		if rendered {
			g.logger.Debug("watch page came from the renderer", zap.String("video_id", videoID))
		}
		page.Fulfill(body, rendered, err)
	}()

	results := make(chan settled, len(summary.SourceNames))
	launch := func(source string, fn func(context.Context) (func(*summary.SignalBundle), error)) {
		go func() {
			start := time.Now()
			apply, err := fn(ctx)
			results <- settled{source: source, apply: apply, err: err, took: time.Since(start)}
		}()
	}

	launch(summary.SourceOEmbed, func(ctx context.Context) (func(*summary.SignalBundle), error) {
		oe, err := g.client.FetchOEmbed(ctx, videoID)
		if err != nil {
			return nil, err
		}
		return func(b *summary.SignalBundle) { b.OEmbed = oe }, nil
	})

	launch(summary.SourceMetadata, func(ctx context.Context) (func(*summary.SignalBundle), error) {
		body, _, err := page.Await(ctx)
		if err != nil {
			return nil, err
		}
		meta := sources.ExtractMetadata(body)
		if metadataEmpty(meta) {
			return nil, errors.New("no usable fields in page")
		}
		return func(b *summary.SignalBundle) { b.Metadata = &meta }, nil
	})

	launch(summary.SourceTranscript, func(ctx context.Context) (func(*summary.SignalBundle), error) {
		data, err := g.resolver.Resolve(ctx, videoID, page)
		if err != nil {
			return nil, err
		}
		data.Text = summary.TruncateMiddle(data.Text, g.cfg.TranscriptMaxChars, summary.TruncationMarker)
		return func(b *summary.SignalBundle) { b.Transcript = data }, nil
	})

	launch(summary.SourceComments, func(ctx context.Context) (func(*summary.SignalBundle), error) {
		comments, err := g.client.FetchComments(ctx, videoID)
		if err != nil {
			return nil, err
		}
		return func(b *summary.SignalBundle) { b.Comments = comments }, nil
	})

	for pending := len(summary.SourceNames); pending > 0; pending-- {
		res := <-results
		if res.err != nil {
			reason := summary.Reason(res.err)
			bundle.Missing[res.source] = reason
			metrics.ObserveSource(res.source, "miss", res.took)
			g.logger.Debug("source settled without data",
				zap.String("video_id", videoID),
				zap.String("source", res.source),
				zap.String("reason", reason),
				zap.Duration("took", res.took))
			if observe != nil {
				observe(SourceEvent{Source: res.source, Detail: reason, Duration: res.took})
			}
			continue
		}
		res.apply(bundle)
		metrics.ObserveSource(res.source, "ok", res.took)
		g.logger.Debug("source settled",
			zap.String("video_id", videoID),
			zap.String("source", res.source),
			zap.Duration("took", res.took))
		if observe != nil {
			observe(SourceEvent{Source: res.source, OK: true, Duration: res.took})
		}
	}

	if bundle.OEmbed == nil && bundle.Metadata == nil && bundle.Transcript == nil {
		return nil, &summary.NoSignalsError{Missing: bundle.Missing}
	}
	return bundle, nil
}

// metadataEmpty reports whether the extractor found nothing at all, which is
// recorded as a missing source rather than present-but-empty data.
func metadataEmpty(meta summary.Metadata) bool {
	return meta.Title == "" && meta.ChannelName == "" && meta.Description == "" &&
		len(meta.Chapters) == 0 && len(meta.Tags) == 0
}
