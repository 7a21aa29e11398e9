package sources

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// FetchComments reads the top comments through the public /next endpoint.
// The first call returns the watch-next payload with a teaser and the
// comment section's continuation token; the second call loads the section
// itself. A video without comments yields an empty slice, not an error.
func (c *Client) FetchComments(ctx context.Context, videoID string) ([]summary.Comment, error) {
	first, err := c.postInnertube(ctx, innertubeNextURL, nextRequest{
		VideoID: videoID,
		Context: c.webContext(""),
	}, webHeaders(""))
	if err != nil {
		return nil, err
	}

	comments := commentsFromPayload(first, c.cfg.CommentLimit)
	if len(comments) >= c.cfg.CommentLimit {
		return comments, nil
	}

	token := commentContinuation(first)
	if token == "" {
		return comments, nil
	}

	visitorData := visitorDataFrom(first)
	second, err := c.postInnertube(ctx, innertubeNextURL, nextRequest{
		Continuation: token,
		Context:      c.webContext(visitorData),
	}, webHeaders(visitorData))
	if err != nil {
		// The teaser comments fetched above are still usable.
		return comments, nil
	}
	comments = append(comments, commentsFromPayload(second, c.cfg.CommentLimit-len(comments))...)
	return comments, nil
}

type commentRenderer struct {
	ContentText struct {
		Runs []struct {
			Text string `json:"text"`
		} `json:"runs"`
		SimpleText string `json:"simpleText"`
	} `json:"contentText"`
	VoteCount *struct {
		SimpleText string `json:"simpleText"`
	} `json:"voteCount"`
}

type commentEntityPayload struct {
	Properties struct {
		Content struct {
			Content string `json:"content"`
		} `json:"content"`
	} `json:"properties"`
	Toolbar *struct {
		LikeCountNotliked string `json:"likeCountNotliked"`
	} `json:"toolbar"`
}

// commentsFromPayload walks a watch-next payload for comment objects in
// discovery order, stopping at limit. Both the current entity-payload shape
// and the legacy renderer shape are recognized.
func commentsFromPayload(data []byte, limit int) []summary.Comment {
	if limit <= 0 {
		return nil
	}
	var comments []summary.Comment
	walkJSON(data, limit, func(obj map[string]json.RawMessage) bool {
		if raw, ok := obj["commentEntityPayload"]; ok {
			var payload commentEntityPayload
			if err := json.Unmarshal(raw, &payload); err == nil {
				text := strings.TrimSpace(payload.Properties.Content.Content)
				if text != "" {
					likes := 0
					if payload.Toolbar != nil {
						likes = parseApproxCount(payload.Toolbar.LikeCountNotliked)
					}
					comments = append(comments, summary.Comment{Text: text, Likes: likes})
					return true
				}
			}
		}
		if raw, ok := obj["commentRenderer"]; ok {
			var renderer commentRenderer
			if err := json.Unmarshal(raw, &renderer); err == nil {
				var sb strings.Builder
				sb.WriteString(renderer.ContentText.SimpleText)
				for _, run := range renderer.ContentText.Runs {
					sb.WriteString(run.Text)
				}
				text := strings.TrimSpace(sb.String())
				if text != "" {
					likes := 0
					if renderer.VoteCount != nil {
						likes = parseApproxCount(renderer.VoteCount.SimpleText)
					}
					comments = append(comments, summary.Comment{Text: text, Likes: likes})
					return true
				}
			}
		}
		return false
	})
	return comments
}

// commentContinuation finds the reload token of the comment item section in
// a watch-next payload.
func commentContinuation(data []byte) string {
	var token string
	walkJSON(data, 1, func(obj map[string]json.RawMessage) bool {
		raw, ok := obj["itemSectionRenderer"]
		if !ok {
			return false
		}
		var section struct {
			SectionIdentifier string          `json:"sectionIdentifier"`
			Contents          json.RawMessage `json:"contents"`
		}
		if err := json.Unmarshal(raw, &section); err != nil {
			return false
		}
		if !strings.Contains(section.SectionIdentifier, "comment") {
			return false
		}
		token = continuationToken(section.Contents)
		return token != ""
	})
	return token
}

// continuationToken digs the first continuationCommand token out of raw
// JSON.
func continuationToken(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var token string
	walkJSON(data, 1, func(obj map[string]json.RawMessage) bool {
		raw, ok := obj["continuationCommand"]
		if !ok {
			return false
		}
		var cmd struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Token == "" {
			return false
		}
		token = cmd.Token
		return true
	})
	return token
}

// visitorDataFrom pulls the session's visitor identifier out of a response
// context so the follow-up continuation call stays in the same session.
func visitorDataFrom(data []byte) string {
	var resp struct {
		ResponseContext struct {
			VisitorData string `json:"visitorData"`
		} `json:"responseContext"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return ""
	}
	return resp.ResponseContext.VisitorData
}

// parseApproxCount turns YouTube's abbreviated counters ("1.2K", "3M",
// "842") into integers. Unparsable input counts as zero.
func parseApproxCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1_000
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1_000_000
		s = s[:len(s)-1]
	case 'B', 'b':
		mult = 1_000_000_000
		s = s[:len(s)-1]
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0
	}
	return int(value * mult)
}
