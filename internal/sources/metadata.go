package sources

import (
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// ExtractMetadata parses a watch page into structured metadata. The function
// is total: every field is parsed on its own, and an unparsable section
// yields its zero value instead of failing the rest.
func ExtractMetadata(page []byte) summary.Metadata {
	var meta summary.Metadata

	if player := extractMarkedJSON(page, playerResponseMarker); player != nil {
		var resp playerResponse
		if err := json.Unmarshal(player, &resp); err == nil && resp.VideoDetails != nil {
			meta.Title = strings.TrimSpace(resp.VideoDetails.Title)
			meta.ChannelName = strings.TrimSpace(resp.VideoDetails.Author)
			meta.Description = strings.TrimSpace(resp.VideoDetails.ShortDescription)
			meta.Tags = resp.VideoDetails.Keywords
		}
	}
	if meta.Title == "" {
		meta.Title = metaTagContent(page, "og:title")
	}
	if meta.Description == "" {
		meta.Description = metaTagContent(page, "og:description")
	}

	if initial := extractMarkedJSON(page, initialDataMarker); initial != nil {
		meta.Chapters = chaptersFromInitialData(initial)
	}
	if len(meta.Chapters) == 0 {
		meta.Chapters = chaptersFromDescription(meta.Description)
	}
	return meta
}

var metaTagPattern = regexp.MustCompile(`<meta[^>]*?(?:property|name)="([^"]+)"[^>]*?content="([^"]*)"`)

// metaTagContent returns the content attribute of the first matching meta
// tag, with HTML entities decoded.
func metaTagContent(page []byte, property string) string {
	for _, m := range metaTagPattern.FindAllSubmatch(page, -1) {
		if string(m[1]) == property {
			return strings.TrimSpace(html.UnescapeString(string(m[2])))
		}
	}
	return ""
}

type markersMapEntry struct {
	Key   string `json:"key"`
	Value struct {
		Chapters []struct {
			ChapterRenderer struct {
				Title struct {
					SimpleText string `json:"simpleText"`
				} `json:"title"`
				TimeRangeStartMillis int64 `json:"timeRangeStartMillis"`
			} `json:"chapterRenderer"`
		} `json:"chapters"`
	} `json:"value"`
}

// chaptersFromInitialData reads the chapter markers the player bar renders.
// Marker groups keep their on-page order and the first group carrying
// chapters wins, so repeated runs over the same payload agree.
func chaptersFromInitialData(data []byte) []summary.Chapter {
	var chapters []summary.Chapter
	walkJSON(data, 1, func(obj map[string]json.RawMessage) bool {
		raw, ok := obj["multiMarkersPlayerBarRenderer"]
		if !ok {
			return false
		}
		var bar struct {
			MarkersMap []markersMapEntry `json:"markersMap"`
		}
		if err := json.Unmarshal(raw, &bar); err != nil {
			return false
		}
		for _, entry := range bar.MarkersMap {
			group := make([]summary.Chapter, 0, len(entry.Value.Chapters))
			for _, ch := range entry.Value.Chapters {
				title := strings.TrimSpace(ch.ChapterRenderer.Title.SimpleText)
				if title == "" || ch.ChapterRenderer.TimeRangeStartMillis < 0 {
					continue
				}
				group = append(group, summary.Chapter{
					Seconds: int(ch.ChapterRenderer.TimeRangeStartMillis / 1000),
					Title:   title,
				})
			}
			if len(group) > 0 {
				chapters = group
				return true
			}
		}
		return false
	})
	return chapters
}

// chapterTimestampPattern matches mm:ss or h:mm:ss stamps inside a
// description line.
var chapterTimestampPattern = regexp.MustCompile(`\b(?:(\d{1,2}):)?(\d{1,2}):(\d{2})\b`)

// chaptersFromDescription falls back to timestamp-prefixed description lines
// when the page carries no structured chapter data. Lines keep their
// original order; nothing is re-sorted.
func chaptersFromDescription(description string) []summary.Chapter {
	if description == "" {
		return nil
	}
	var chapters []summary.Chapter
	for _, line := range strings.Split(description, "\n") {
		m := chapterTimestampPattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		seconds, ok := timestampSeconds(line, m)
		if !ok {
			continue
		}
		label := strings.Trim(line[m[1]:], " \t-:|.)(–—•")
		if label == "" {
			continue
		}
		chapters = append(chapters, summary.Chapter{Seconds: seconds, Title: label})
	}
	return chapters
}

// timestampSeconds converts the matched stamp to seconds from video start.
// Stamps with out-of-range components are rejected.
func timestampSeconds(line string, m []int) (int, bool) {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return line[m[2*i]:m[2*i+1]]
	}
	hours := 0
	if h := group(1); h != "" {
		hours, _ = strconv.Atoi(h)
	}
	minutes, _ := strconv.Atoi(group(2))
	secs, _ := strconv.Atoi(group(3))
	if secs > 59 || (hours > 0 && minutes > 59) {
		return 0, false
	}
	return hours*3600 + minutes*60 + secs, true
}
