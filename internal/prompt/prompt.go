// Package prompt turns a gathered signal bundle into the single prompt
// string sent to the model. Building is pure and deterministic: the same
// bundle always yields byte-identical output.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

const (
	withTranscriptInstructions = `You are an expert video content analyst. Summarize the YouTube video described below.

Treat the transcript as the primary source of truth. Use the metadata, description and chapter titles to structure the summary and to name sections. Open with a one-paragraph overview, then cover the main points in order. Keep the tone factual and concise.`

	sentimentInstruction = `Close with a short "Audience sentiment" section that reflects what the quoted viewer comments focus on.`

	withoutTranscriptInstructions = `You are an expert video content analyst. Summarize the YouTube video described below.

Build a confident summary from the title, channel, description, tags, chapters and viewer comments. Write as if you watched the video. Do not mention what information you do or do not have, do not apologize, do not hedge, and never refer to a transcript. Open with a one-paragraph overview, then cover what the video covers based on the description and chapter titles.`
)

// Build renders the prompt for one bundle. Sections appear in fixed order
// (video info, metadata, transcript, comments, unavailable signals) and only
// when the bundle has data for them.
func Build(bundle *summary.SignalBundle) string {
	var b strings.Builder

	if bundle.Transcript != nil {
		b.WriteString(withTranscriptInstructions)
		if len(bundle.Comments) > 0 {
			b.WriteString(" ")
			b.WriteString(sentimentInstruction)
		}
	} else {
		b.WriteString(withoutTranscriptInstructions)
	}
	b.WriteString("\n")

	writeVideoInfo(&b, bundle)
	writeMetadata(&b, bundle.Metadata)
	writeTranscript(&b, bundle.Transcript)
	writeComments(&b, bundle.Comments)
	writeUnavailable(&b, bundle.Missing)

	return b.String()
}

func writeVideoInfo(b *strings.Builder, bundle *summary.SignalBundle) {
	b.WriteString("\n## Video info\n")
	fmt.Fprintf(b, "URL: %s\n", bundle.VideoURL)

	title, channel := "", ""
	if bundle.OEmbed != nil {
		title = bundle.OEmbed.Title
		channel = bundle.OEmbed.AuthorName
	}
	if title == "" && bundle.Metadata != nil {
		title = bundle.Metadata.Title
	}
	if channel == "" && bundle.Metadata != nil {
		channel = bundle.Metadata.ChannelName
	}
	if title != "" {
		fmt.Fprintf(b, "Title: %s\n", title)
	}
	if channel != "" {
		fmt.Fprintf(b, "Channel: %s\n", channel)
	}
	if bundle.OEmbed != nil && bundle.OEmbed.AuthorURL != "" {
		fmt.Fprintf(b, "Channel URL: %s\n", bundle.OEmbed.AuthorURL)
	}
}

func writeMetadata(b *strings.Builder, meta *summary.Metadata) {
	if meta == nil {
		return
	}
	b.WriteString("\n## Metadata\n")
	if meta.Description != "" {
		b.WriteString("Description:\n")
		b.WriteString(meta.Description)
		b.WriteString("\n")
	}
	if len(meta.Tags) > 0 {
		fmt.Fprintf(b, "Tags: %s\n", strings.Join(meta.Tags, ", "))
	}
	if len(meta.Chapters) > 0 {
		b.WriteString("Chapters:\n")
		for _, ch := range meta.Chapters {
			fmt.Fprintf(b, "- [%s] %s\n", formatOffset(ch.Seconds), ch.Title)
		}
	}
}

func writeTranscript(b *strings.Builder, data *summary.TranscriptData) {
	if data == nil {
		return
	}
	fmt.Fprintf(b, "\n## Transcript (language %s, %d segments)\n", data.Language, data.SegmentCount)
	b.WriteString(data.Text)
	b.WriteString("\n")
}

func writeComments(b *strings.Builder, comments []summary.Comment) {
	if len(comments) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## Comments (top %d)\n", len(comments))
	for _, c := range comments {
		if c.Likes > 0 {
			fmt.Fprintf(b, "- (%d likes) %s\n", c.Likes, c.Text)
		} else {
			fmt.Fprintf(b, "- %s\n", c.Text)
		}
	}
}

func writeUnavailable(b *strings.Builder, missing map[string]string) {
	if len(missing) == 0 {
		return
	}
	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("\n## Unavailable signals\n")
	for _, k := range keys {
		fmt.Fprintf(b, "- %s: %s\n", k, missing[k])
	}
}

// formatOffset renders a chapter offset the way video players display it.
func formatOffset(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
