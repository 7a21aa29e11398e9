package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNoSignalsErrorMessage verifies the failure message names every missing
// source with its reason, in stable order.
func TestNoSignalsErrorMessage(t *testing.T) {
	t.Parallel()

	err := &NoSignalsError{Missing: map[string]string{
		SourceTranscript: "transcript unavailable: no caption tracks",
		SourceOEmbed:     "timed out",
		SourceMetadata:   "status 404",
		SourceComments:   "timed out",
	}}

	msg := err.Error()
	require.Contains(t, msg, "no signals available")
	require.Contains(t, msg, "oembed: timed out")
	require.Contains(t, msg, "metadata: status 404")
	require.Contains(t, msg, "transcript: transcript unavailable: no caption tracks")
	require.Contains(t, msg, "comments: timed out")

	// Keys are sorted so the message is deterministic.
	require.Equal(t, err.Error(), err.Error())
	require.Less(t, strings.Index(msg, "comments:"), strings.Index(msg, "metadata:"))
	require.Less(t, strings.Index(msg, "metadata:"), strings.Index(msg, "oembed:"))
	require.Less(t, strings.Index(msg, "oembed:"), strings.Index(msg, "transcript:"))
}

// TestTranscriptUnavailableAggregates verifies every provider reason appears
// in the aggregate message.
func TestTranscriptUnavailableAggregates(t *testing.T) {
	t.Parallel()

	err := &TranscriptUnavailableError{Reasons: []string{"no caption tracks", "timed out"}}
	require.Equal(t, "transcript unavailable: no caption tracks; timed out", err.Error())
}

// TestReasonFoldsContextErrors verifies context cancellation and deadline
// errors normalize to short reasons while other errors pass through.
func TestReasonFoldsContextErrors(t *testing.T) {
	t.Parallel()

	require.Equal(t, "timed out", Reason(context.DeadlineExceeded))
	require.Equal(t, "canceled", Reason(context.Canceled))
	require.Equal(t, "timed out", Reason(&FetchError{Reason: Reason(context.DeadlineExceeded)}))
	require.Equal(t, "status 500", Reason(errors.New("status 500")))
	require.Equal(t, "", Reason(nil))

	wrapped := &FetchError{Reason: "connection refused"}
	require.Equal(t, "connection refused", Reason(wrapped))
}

// TestRateLimitedError verifies the retry hint is carried on the error.
func TestRateLimitedError(t *testing.T) {
	t.Parallel()

	err := &RateLimitedError{RetryAfter: 3 * time.Second}
	require.Contains(t, err.Error(), "3s")

	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl))
	require.Equal(t, 3*time.Second, rl.RetryAfter)
}
