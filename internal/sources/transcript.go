package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// transcriptProvider is one independent way of obtaining captions.
type transcriptProvider interface {
	name() string
	fetch(ctx context.Context, videoID string, page *summary.PageCell) (*summary.TranscriptData, error)
}

// Resolver races transcript providers and keeps the first success. A fast
// failure never preempts a slower success; the race only ends without a
// winner when every provider has failed or the outer timeout fires.
type Resolver struct {
	providers       []transcriptProvider
	providerTimeout time.Duration
	raceTimeout     time.Duration
	logger          *zap.Logger
}

// NewResolver builds a resolver over the innertube player endpoint and the
// watch page scrape. Both reach the same caption files through different
// front doors, so one being blocked rarely implies the other is.
func NewResolver(client *Client, providerTimeout, raceTimeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		providers: []transcriptProvider{
			&playerProvider{client: client},
			&scrapeProvider{client: client},
		},
		providerTimeout: providerTimeout,
		raceTimeout:     raceTimeout,
		logger:          logger.Named("transcript"),
	}
}

type transcriptResult struct {
	provider string
	data     *summary.TranscriptData
	err      error
}

// Resolve launches every provider concurrently and returns the first
// transcript to arrive, cancelling the losers. When no provider wins, the
// error aggregates every provider's reason.
func (r *Resolver) Resolve(ctx context.Context, videoID string, page *summary.PageCell) (*summary.TranscriptData, error) {
	var raceCtx context.Context
	var cancel context.CancelFunc
	if r.raceTimeout > 0 {
		raceCtx, cancel = context.WithTimeout(ctx, r.raceTimeout)
	} else {
		raceCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Buffered so losers can report after the winner returned and still
	// terminate.
	results := make(chan transcriptResult, len(r.providers))
	for _, p := range r.providers {
		go func(p transcriptProvider) {
			callCtx := raceCtx
			done := context.CancelFunc(func() {})
			if r.providerTimeout > 0 {
				callCtx, done = context.WithTimeout(raceCtx, r.providerTimeout)
			}
			defer done()
			data, err := p.fetch(callCtx, videoID, page)
			results <- transcriptResult{provider: p.name(), data: data, err: err}
		}(p)
	}

	reasons := make([]string, 0, len(r.providers))
	for pending := len(r.providers); pending > 0; pending-- {
		select {
		case <-raceCtx.Done():
			reasons = append(reasons, "race "+summary.Reason(raceCtx.Err()))
			return nil, &summary.TranscriptUnavailableError{Reasons: reasons}
		case res := <-results:
			if res.err == nil && res.data != nil {
				metrics.ObserveTranscriptWin(res.provider)
				r.logger.Debug("transcript race won",
					zap.String("provider", res.provider),
					zap.String("video_id", videoID),
					zap.Int("segments", res.data.SegmentCount))
				return res.data, nil
			}
			r.logger.Debug("transcript provider failed",
				zap.String("provider", res.provider),
				zap.String("video_id", videoID),
				zap.String("reason", summary.Reason(res.err)))
			reasons = append(reasons, res.provider+": "+summary.Reason(res.err))
		}
	}
	return nil, &summary.TranscriptUnavailableError{Reasons: reasons}
}

// playerProvider asks the innertube player endpoint for caption tracks.
type playerProvider struct {
	client *Client
}

func (p *playerProvider) name() string { return "innertube" }

func (p *playerProvider) fetch(ctx context.Context, videoID string, _ *summary.PageCell) (*summary.TranscriptData, error) {
	resp, err := p.client.fetchPlayerResponse(ctx, videoID)
	if err != nil {
		return nil, err
	}
	track, err := pickCaptionTrack(resp, preferredLanguages(p.client.cfg.Language))
	if err != nil {
		return nil, err
	}
	return p.client.fetchTimedText(ctx, track)
}

// scrapeProvider reads the player payload embedded in the watch page. It
// awaits the shared page cell when one is in flight so the page is fetched
// once per request.
type scrapeProvider struct {
	client *Client
}

func (p *scrapeProvider) name() string { return "watchpage" }

func (p *scrapeProvider) fetch(ctx context.Context, videoID string, page *summary.PageCell) (*summary.TranscriptData, error) {
	var body []byte
	var err error
	if page != nil {
		body, _, err = page.Await(ctx)
	} else {
		body, _, err = p.client.FetchWatchPage(ctx, videoID)
	}
	if err != nil {
		return nil, err
	}

	player := extractMarkedJSON(body, playerResponseMarker)
	if player == nil {
		return nil, errors.New("player payload not found in page")
	}
	var resp playerResponse
	if err := json.Unmarshal(player, &resp); err != nil {
		return nil, fmt.Errorf("decode player payload: %w", err)
	}
	track, err := pickCaptionTrack(&resp, preferredLanguages(p.client.cfg.Language))
	if err != nil {
		return nil, err
	}
	return p.client.fetchTimedText(ctx, track)
}

// pickCaptionTrack selects the most useful track: manual captions in a
// preferred language beat auto-generated ones, which beat any English track,
// which beats whatever is left.
func pickCaptionTrack(resp *playerResponse, langs []string) (captionTrack, error) {
	if resp.Captions == nil {
		if resp.PlayabilityStatus != nil && resp.PlayabilityStatus.Reason != "" {
			return captionTrack{}, errors.New("captions unavailable: " + resp.PlayabilityStatus.Reason)
		}
		return captionTrack{}, errors.New("no captions in player response")
	}
	tracks := resp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsProofToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		if len(tracks) > 0 {
			return captionTrack{}, errors.New("caption tracks require browser attestation")
		}
		return captionTrack{}, errors.New("no caption tracks")
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, nil
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, nil
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, nil
		}
	}
	return usable[0], nil
}

// needsProofToken reports whether a caption URL only works with a browser
// proof-of-origin token attached.
func needsProofToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

func preferredLanguages(lang string) []string {
	if lang == "" || lang == "en" {
		return []string{"en"}
	}
	return []string{lang, "en"}
}
