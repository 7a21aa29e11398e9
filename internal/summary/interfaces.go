package summary

import (
	"context"
	"time"
)

// Fetcher performs one outbound HTTP call with a timeout and returns the
// body plus metadata. Implementations never leak raw transport errors; every
// failure is a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// TranscriptResolver races the configured transcript providers and returns
// the first transcript to arrive. The page cell carries the shared watch
// page fetch when the caller already has one in flight; nil is allowed.
type TranscriptResolver interface {
	Resolve(ctx context.Context, videoID string, page *PageCell) (*TranscriptData, error)
}

// SummaryStore persists finished summaries keyed by video ID with
// last-writer-wins semantics.
type SummaryStore interface {
	Save(ctx context.Context, s StoredSummary) error
	Get(ctx context.Context, videoID string) (StoredSummary, error)
	Delete(ctx context.Context, videoID string) error
}

// ArtifactStore writes raw artifacts (prompts, summaries) and returns a URI.
type ArtifactStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Notifier pushes completion events to Pub/Sub (or similar).
type Notifier interface {
	Notify(ctx context.Context, topic string, payload any) (string, error)
}

// TextProducer streams a model-generated summary for a prompt. emit is
// called once per delta in arrival order; the assembled text is returned
// when the stream completes. A nil emit is allowed.
type TextProducer interface {
	Produce(ctx context.Context, prompt string, emit func(delta string) error) (string, error)
}

// Hasher computes digests for artifact content addressing.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
