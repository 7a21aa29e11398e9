package sources

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

type timedText struct {
	Lines []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Text string `xml:",chardata"`
}

var captionTagPattern = regexp.MustCompile(`<[^>]+>`)

// cleanCaptionLine decodes entities and strips residual markup such as the
// inline styling tags some tracks carry.
func cleanCaptionLine(s string) string {
	s = html.UnescapeString(s)
	s = captionTagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// parseTimedText converts caption XML into transcript data. A track that
// decodes but contains no usable text counts as a failure so the race can
// fall through to another provider.
func parseTimedText(body []byte, language string) (*summary.TranscriptData, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext: %w", err)
	}
	var sb strings.Builder
	segments := 0
	for _, line := range tt.Lines {
		text := cleanCaptionLine(line.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
		segments++
	}
	if segments == 0 {
		return nil, errors.New("empty caption track")
	}
	return &summary.TranscriptData{
		Text:         sb.String(),
		Language:     language,
		SegmentCount: segments,
	}, nil
}
