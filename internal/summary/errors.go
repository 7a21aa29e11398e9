package summary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by SummaryStore implementations when no summary
// exists for the requested video.
var ErrNotFound = errors.New("summary not found")

// FetchError is the normalized form of every failed outbound call. Reason is
// human-readable and safe to record in a bundle's Missing map; no transport
// internals cross this boundary.
type FetchError struct {
	Reason string
}

func (e *FetchError) Error() string {
	return e.Reason
}

// InvalidVideoURLError reports an input string that matches no known video
// URL shape.
type InvalidVideoURLError struct {
	Input string
}

func (e *InvalidVideoURLError) Error() string {
	return fmt.Sprintf("no video id found in %q", e.Input)
}

// TranscriptUnavailableError aggregates the per-provider failures after a
// lost transcript race. Individual provider errors never travel past this
// boundary.
type TranscriptUnavailableError struct {
	Reasons []string
}

func (e *TranscriptUnavailableError) Error() string {
	if len(e.Reasons) == 0 {
		return "transcript unavailable"
	}
	return "transcript unavailable: " + strings.Join(e.Reasons, "; ")
}

// NoSignalsError means every source failed. Its message concatenates each
// source's reason so the client sees the full picture.
type NoSignalsError struct {
	Missing map[string]string
}

func (e *NoSignalsError) Error() string {
	if len(e.Missing) == 0 {
		return "no signals available"
	}
	keys := make([]string, 0, len(e.Missing))
	for k := range e.Missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Missing[k]))
	}
	return "no signals available: " + strings.Join(parts, "; ")
}

// RateLimitedError reports an upstream or local rate limit. RetryAfter is
// zero when the limiter gave no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Reason normalizes an arbitrary error into a human-readable reason string
// suitable for Missing entries and wire payloads. Context errors fold into
// plain words so a fired timeout reads like any other source failure.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return err.Error()
}
