package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

const oembedEndpoint = "https://www.youtube.com/oembed"

// oEmbed documents are tiny; anything bigger is not the document we asked
// for.
const oembedMaxBytes = 64 * 1024

// FetchOEmbed reads the public oEmbed document for a video. A non-200 status
// usually means the video is private, deleted or never existed.
func (c *Client) FetchOEmbed(ctx context.Context, videoID string) (*summary.OEmbed, error) {
	target := oembedEndpoint + "?format=json&url=" + url.QueryEscape(summary.WatchURL(videoID))

	resp, err := c.fetcher.Fetch(ctx, summary.FetchRequest{
		URL:          target,
		MaxBodyBytes: oembedMaxBytes,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &summary.FetchError{Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var out summary.OEmbed
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode oembed: %w", err)
	}
	if out.Title == "" && out.AuthorName == "" {
		return nil, errors.New("empty oembed document")
	}
	return &out, nil
}
