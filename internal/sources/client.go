// Package sources gathers the independent signals a video summary is built
// from: oEmbed, the watch page, comment threads and caption tracks. Every
// source degrades on its own; a failure here becomes a recorded reason, not
// a request failure.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

const (
	innertubePlayerURL = "https://www.youtube.com/youtubei/v1/player"
	innertubeNextURL   = "https://www.youtube.com/youtubei/v1/next"

	webClientVersion     = "2.20250222.10.00"
	androidClientVersion = "20.10.38"
	androidSDKVersion    = 30
	androidUserAgent     = "com.google.android.youtube/" + androidClientVersion + " (Linux; U; Android 11) gzip"
	chromeUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	playerResponseMarker = "ytInitialPlayerResponse = "
	initialDataMarker    = "ytInitialData = "
)

// Config bounds the network surface of the signal sources.
type Config struct {
	PageMaxBytes      int64
	InnertubeMaxBytes int64
	CaptionMaxBytes   int64
	CommentLimit      int
	Language          string
	Region            string
}

// Client reads YouTube's public surfaces through the timed fetcher. The
// optional headless fetcher renders pages the plain fetch cannot use, such
// as consent interstitials.
type Client struct {
	fetcher  summary.Fetcher
	headless summary.Fetcher
	cfg      Config
	logger   *zap.Logger
}

// NewClient wires a client over the given fetchers.
func NewClient(fetcher summary.Fetcher, headless summary.Fetcher, cfg Config, logger *zap.Logger) *Client {
	if cfg.CommentLimit <= 0 {
		cfg.CommentLimit = 10
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Region == "" {
		cfg.Region = "US"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		fetcher:  fetcher,
		headless: headless,
		cfg:      cfg,
		logger:   logger.Named("sources"),
	}
}

type clientContext struct {
	Client  clientInfo  `json:"client"`
	User    *webUser    `json:"user,omitempty"`
	Request *webRequest `json:"request,omitempty"`
}

type clientInfo struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSDKVersion int    `json:"androidSdkVersion,omitempty"`
	VisitorData       string `json:"visitorData,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type webUser struct {
	EnableSafetyMode bool `json:"enableSafetyMode"`
}

type webRequest struct {
	UseSsl bool `json:"useSsl"`
}

func (c *Client) androidContext() clientContext {
	return clientContext{Client: clientInfo{
		ClientName:        "ANDROID",
		ClientVersion:     androidClientVersion,
		AndroidSDKVersion: androidSDKVersion,
		Hl:                c.cfg.Language,
		Gl:                c.cfg.Region,
	}}
}

func (c *Client) webContext(visitorData string) clientContext {
	return clientContext{
		Client: clientInfo{
			ClientName:    "WEB",
			ClientVersion: webClientVersion,
			VisitorData:   visitorData,
			Hl:            c.cfg.Language,
			Gl:            c.cfg.Region,
		},
		User:    &webUser{EnableSafetyMode: false},
		Request: &webRequest{UseSsl: true},
	}
}

func webHeaders(visitorData string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", chromeUserAgent)
	h.Set("Accept", "*/*")
	h.Set("Origin", "https://www.youtube.com")
	h.Set("Referer", "https://www.youtube.com/")
	h.Set("X-Youtube-Client-Name", "1")
	h.Set("X-Youtube-Client-Version", webClientVersion)
	if visitorData != "" {
		h.Set("X-Goog-Visitor-Id", visitorData)
	}
	return h
}

func androidHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", androidUserAgent)
	h.Set("Accept", "*/*")
	h.Set("X-Youtube-Client-Name", "3")
	h.Set("X-Youtube-Client-Version", androidClientVersion)
	return h
}

// postInnertube sends one JSON request to an innertube endpoint and returns
// the raw response payload.
func (c *Client) postInnertube(ctx context.Context, endpoint string, payload any, header http.Header) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal innertube payload: %w", err)
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")

	resp, err := c.fetcher.Fetch(ctx, summary.FetchRequest{
		URL:          endpoint + "?prettyPrint=false",
		Method:       http.MethodPost,
		Header:       header,
		Body:         body,
		MaxBodyBytes: c.cfg.InnertubeMaxBytes,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &summary.FetchError{Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return resp.Body, nil
}

type playerRequest struct {
	VideoID        string        `json:"videoId"`
	Context        clientContext `json:"context"`
	RacyCheckOk    bool          `json:"racyCheckOk"`
	ContentCheckOk bool          `json:"contentCheckOk"`
}

type nextRequest struct {
	VideoID      string        `json:"videoId,omitempty"`
	Continuation string        `json:"continuation,omitempty"`
	Context      clientContext `json:"context"`
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails *videoDetails `json:"videoDetails"`
}

type videoDetails struct {
	Title            string   `json:"title"`
	Author           string   `json:"author"`
	ShortDescription string   `json:"shortDescription"`
	Keywords         []string `json:"keywords"`
	LengthSeconds    string   `json:"lengthSeconds"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	// Kind is "asr" for auto-generated tracks and empty for manual ones.
	Kind string `json:"kind"`
}

// fetchPlayerResponse asks the innertube player endpoint for video details
// and caption tracks. The Android client surface returns caption URLs that
// work without browser attestation.
func (c *Client) fetchPlayerResponse(ctx context.Context, videoID string) (*playerResponse, error) {
	body, err := c.postInnertube(ctx, innertubePlayerURL, playerRequest{
		VideoID:        videoID,
		Context:        c.androidContext(),
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}, androidHeaders())
	if err != nil {
		return nil, err
	}
	var resp playerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return &resp, nil
}

// consentMarkers appear when the EU consent interstitial replaces the watch
// page for cookie-less clients.
var consentMarkers = [][]byte{
	[]byte("consent.youtube.com"),
	[]byte("action=\"https://consent.youtube.com/save\""),
}

// FetchWatchPage retrieves the watch page HTML for a video. When the plain
// fetch lands on a consent interstitial and a headless fetcher is available,
// the page is re-fetched through a real browser; the boolean reports whether
// the returned body came from the renderer.
func (c *Client) FetchWatchPage(ctx context.Context, videoID string) ([]byte, bool, error) {
	watchURL := summary.WatchURL(videoID) + "&hl=" + c.cfg.Language

	header := http.Header{}
	header.Set("User-Agent", chromeUserAgent)
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.fetcher.Fetch(ctx, summary.FetchRequest{
		URL:          watchURL,
		Header:       header,
		MaxBodyBytes: c.cfg.PageMaxBytes,
	})
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, &summary.FetchError{Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	if !needsRendering(resp.Body) || c.headless == nil {
		return resp.Body, false, nil
	}

	c.logger.Debug("watch page blocked, promoting to headless",
		zap.String("video_id", videoID))
	rendered, err := c.headless.Fetch(ctx, summary.FetchRequest{
		URL:          watchURL,
		MaxBodyBytes: c.cfg.PageMaxBytes,
	})
	if err != nil {
		c.logger.Debug("headless fetch failed, keeping plain body",
			zap.String("video_id", videoID), zap.String("reason", summary.Reason(err)))
		return resp.Body, false, nil
	}
	return rendered.Body, true, nil
}

// needsRendering reports whether a fetched page is an interstitial rather
// than the player payload the extractors need.
func needsRendering(body []byte) bool {
	if bytes.Contains(body, []byte(playerResponseMarker)) {
		return false
	}
	for _, marker := range consentMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return len(body) < 2048
}

// fetchTimedText downloads and parses one caption track.
func (c *Client) fetchTimedText(ctx context.Context, track captionTrack) (*summary.TranscriptData, error) {
	resp, err := c.fetcher.Fetch(ctx, summary.FetchRequest{
		URL:          track.BaseURL,
		MaxBodyBytes: c.cfg.CaptionMaxBytes,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &summary.FetchError{Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return parseTimedText(resp.Body, track.LanguageCode)
}
