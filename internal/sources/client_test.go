package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// stubFetcher records requests and answers them through a handler, so tests
// can script YouTube's responses without a network.
type stubFetcher struct {
	mu      sync.Mutex
	calls   []summary.FetchRequest
	handler func(ctx context.Context, req summary.FetchRequest) (summary.FetchResponse, error)
}

func (s *stubFetcher) Fetch(ctx context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.handler == nil {
		return summary.FetchResponse{URL: req.URL, StatusCode: http.StatusOK}, nil
	}
	return s.handler(ctx, req)
}

func (s *stubFetcher) requests() []summary.FetchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]summary.FetchRequest(nil), s.calls...)
}

func okResponse(req summary.FetchRequest, body string) (summary.FetchResponse, error) {
	return summary.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func newTestClient(fetcher summary.Fetcher, headless summary.Fetcher) *Client {
	return NewClient(fetcher, headless, Config{
		PageMaxBytes:      1 << 20,
		InnertubeMaxBytes: 1 << 20,
		CaptionMaxBytes:   1 << 20,
		CommentLimit:      10,
	}, nil)
}

func TestPostInnertubeRequestShape(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return okResponse(req, `{"ok": true}`)
	}}
	c := newTestClient(stub, nil)

	body, err := c.postInnertube(context.Background(), innertubePlayerURL, playerRequest{
		VideoID:        "dQw4w9WgXcQ",
		Context:        c.androidContext(),
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}, androidHeaders())
	require.NoError(t, err)
	require.JSONEq(t, `{"ok": true}`, string(body))

	calls := stub.requests()
	require.Len(t, calls, 1)
	req := calls[0]
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, innertubePlayerURL+"?prettyPrint=false", req.URL)
	require.Equal(t, "application/json", req.Header.Get("Content-Type"))
	require.Equal(t, androidUserAgent, req.Header.Get("User-Agent"))
	require.Equal(t, "3", req.Header.Get("X-Youtube-Client-Name"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &payload))
	require.Equal(t, "dQw4w9WgXcQ", payload["videoId"])
	require.Equal(t, true, payload["racyCheckOk"])
}

func TestPostInnertubeNonOKStatus(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return summary.FetchResponse{URL: req.URL, StatusCode: http.StatusForbidden}, nil
	}}
	c := newTestClient(stub, nil)

	_, err := c.postInnertube(context.Background(), innertubeNextURL, nextRequest{VideoID: "x"}, nil)
	var fe *summary.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "status 403", fe.Reason)
}

func TestFetchWatchPagePlain(t *testing.T) {
	t.Parallel()

	page := `<html>` + playerResponseMarker + `{"videoDetails":{}};</html>`
	stub := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return okResponse(req, page)
	}}
	c := newTestClient(stub, nil)

	body, rendered, err := c.FetchWatchPage(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.False(t, rendered)
	require.Equal(t, page, string(body))

	calls := stub.requests()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].URL, "watch?v=dQw4w9WgXcQ")
	require.Equal(t, chromeUserAgent, calls[0].Header.Get("User-Agent"))
}

func TestFetchWatchPagePromotesConsentToHeadless(t *testing.T) {
	t.Parallel()

	consentPage := `<html><form action="https://consent.youtube.com/save">agree</form></html>`
	renderedPage := `<html>` + playerResponseMarker + `{"videoDetails":{"title":"T"}};</html>`

	plain := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return okResponse(req, consentPage)
	}}
	headless := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		resp, err := okResponse(req, renderedPage)
		resp.Rendered = true
		return resp, err
	}}
	c := newTestClient(plain, headless)

	body, rendered, err := c.FetchWatchPage(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.True(t, rendered)
	require.Equal(t, renderedPage, string(body))
	require.Len(t, plain.requests(), 1)
	require.Len(t, headless.requests(), 1)
}

func TestFetchWatchPageKeepsPlainBodyWhenHeadlessFails(t *testing.T) {
	t.Parallel()

	consentPage := `<html>consent.youtube.com</html>`
	plain := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return okResponse(req, consentPage)
	}}
	headless := &stubFetcher{handler: func(context.Context, summary.FetchRequest) (summary.FetchResponse, error) {
		return summary.FetchResponse{}, &summary.FetchError{Reason: "render timed out"}
	}}
	c := newTestClient(plain, headless)

	body, rendered, err := c.FetchWatchPage(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.False(t, rendered)
	require.Equal(t, consentPage, string(body))
}

func TestFetchWatchPageStatusError(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return summary.FetchResponse{URL: req.URL, StatusCode: http.StatusTooManyRequests}, nil
	}}
	c := newTestClient(stub, nil)

	_, _, err := c.FetchWatchPage(context.Background(), "dQw4w9WgXcQ")
	var fe *summary.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "status 429", fe.Reason)
}

func TestNeedsRendering(t *testing.T) {
	t.Parallel()

	withPlayer := strings.Repeat("x", 4096) + playerResponseMarker + "{}"
	bigPlain := strings.Repeat("x", 4096)

	require.False(t, needsRendering([]byte(withPlayer)))
	require.False(t, needsRendering([]byte(bigPlain)))
	require.True(t, needsRendering([]byte(bigPlain+"consent.youtube.com")))
	require.True(t, needsRendering([]byte("tiny body")))
}

func TestFetchTimedText(t *testing.T) {
	t.Parallel()

	xmlBody := `<?xml version="1.0" encoding="utf-8"?><transcript>` +
		`<text start="0" dur="2">first line</text>` +
		`<text start="2" dur="2">second line</text>` +
		`</transcript>`

	stub := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return okResponse(req, xmlBody)
	}}
	c := newTestClient(stub, nil)

	data, err := c.fetchTimedText(context.Background(), captionTrack{
		BaseURL:      "https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ",
		LanguageCode: "en",
	})
	require.NoError(t, err)
	require.Equal(t, "first line second line", data.Text)
	require.Equal(t, "en", data.Language)
	require.Equal(t, 2, data.SegmentCount)
}

func TestFetchTimedTextStatusError(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return summary.FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound}, nil
	}}
	c := newTestClient(stub, nil)

	_, err := c.fetchTimedText(context.Background(), captionTrack{BaseURL: "https://example.invalid/tt"})
	var fe *summary.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "status 404", fe.Reason)
}

func TestFetchPlayerResponseDecodes(t *testing.T) {
	t.Parallel()

	payload := `{
	  "playabilityStatus": {"status": "OK"},
	  "videoDetails": {"title": "A Video", "author": "A Channel"},
	  "captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
	    {"baseUrl": "https://www.youtube.com/api/timedtext?lang=en", "languageCode": "en"}
	  ]}}
	}`
	stub := &stubFetcher{handler: func(_ context.Context, req summary.FetchRequest) (summary.FetchResponse, error) {
		return okResponse(req, payload)
	}}
	c := newTestClient(stub, nil)

	resp, err := c.fetchPlayerResponse(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.NotNil(t, resp.VideoDetails)
	require.Equal(t, "A Video", resp.VideoDetails.Title)
	require.NotNil(t, resp.Captions)
	require.Len(t, resp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, 1)
}

func TestFetchPlayerResponsePropagatesFetchError(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{handler: func(context.Context, summary.FetchRequest) (summary.FetchResponse, error) {
		return summary.FetchResponse{}, &summary.FetchError{Reason: "timed out"}
	}}
	c := newTestClient(stub, nil)

	_, err := c.fetchPlayerResponse(context.Background(), "dQw4w9WgXcQ")
	var fe *summary.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, "timed out", fe.Reason)
}
