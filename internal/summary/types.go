package summary

import (
	"net/http"
	"time"
)

// Source names used as keys in SignalBundle.Missing and entries in
// StoredSummary.Sources.
const (
	SourceOEmbed     = "oembed"
	SourceMetadata   = "metadata"
	SourceTranscript = "transcript"
	SourceComments   = "comments"
)

// SourceNames lists every signal source in presentation order.
var SourceNames = []string{SourceOEmbed, SourceMetadata, SourceTranscript, SourceComments}

// OEmbed holds the fields the oEmbed endpoint returns for a video.
type OEmbed struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ProviderName string `json:"provider_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Chapter is a named offset into the video. Seconds is never negative.
// Chapters keep the order they were discovered in.
type Chapter struct {
	Seconds int    `json:"seconds"`
	Title   string `json:"title"`
}

// Metadata holds the fields parsed from the watch page.
type Metadata struct {
	Title       string    `json:"title"`
	ChannelName string    `json:"channel_name"`
	Description string    `json:"description"`
	Chapters    []Chapter `json:"chapters,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// TranscriptData is a resolved transcript. Text is never empty.
type TranscriptData struct {
	Text         string `json:"text"`
	Language     string `json:"language"`
	SegmentCount int    `json:"segment_count"`
}

// Comment is one viewer comment found by the structural search.
type Comment struct {
	Text  string `json:"text"`
	Likes int    `json:"likes"`
}

// SignalBundle is everything the pipeline learned about one video. It is
// built once per request and treated as immutable afterwards; it is never
// persisted. At least one of OEmbed, Metadata, or Transcript is non-nil,
// or construction fails with a NoSignalsError.
type SignalBundle struct {
	VideoID    string
	VideoURL   string
	OEmbed     *OEmbed
	Metadata   *Metadata
	Transcript *TranscriptData
	Comments   []Comment

	// Missing maps a source name to the human-readable reason it produced
	// no data. An empty-but-successful source is not missing.
	Missing map[string]string
}

// AvailableSources returns the names of the sources that produced data, in
// presentation order.
func (b *SignalBundle) AvailableSources() []string {
	var out []string
	for _, name := range SourceNames {
		switch name {
		case SourceOEmbed:
			if b.OEmbed != nil {
				out = append(out, name)
			}
		case SourceMetadata:
			if b.Metadata != nil {
				out = append(out, name)
			}
		case SourceTranscript:
			if b.Transcript != nil {
				out = append(out, name)
			}
		case SourceComments:
			if _, miss := b.Missing[SourceComments]; !miss {
				out = append(out, name)
			}
		}
	}
	return out
}

// StoredSummary is the persistence entity for a finished summary.
type StoredSummary struct {
	VideoID    string    `json:"video_id"`
	VideoURL   string    `json:"video_url"`
	Summary    string    `json:"summary"`
	Model      string    `json:"model,omitempty"`
	Sources    []string  `json:"sources"`
	PromptHash string    `json:"prompt_hash,omitempty"`
	PromptURI  string    `json:"prompt_uri,omitempty"`
	SummaryURI string    `json:"summary_uri,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FetchRequest captures everything needed for one outbound call.
type FetchRequest struct {
	URL          string
	Method       string // defaults to GET
	Header       http.Header
	Body         []byte // request body for POST calls
	MaxBodyBytes int64  // response size cap; 0 means the fetcher default
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool // true when a headless browser produced the body
}
