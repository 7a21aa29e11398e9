package summary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAvailableSourcesOrder verifies present sources list in presentation
// order and missing ones are excluded.
func TestAvailableSourcesOrder(t *testing.T) {
	t.Parallel()

	bundle := &SignalBundle{
		OEmbed:   &OEmbed{Title: "t"},
		Metadata: &Metadata{Title: "t"},
		Transcript: &TranscriptData{
			Text: "hello",
		},
	}
	require.Equal(t, []string{SourceOEmbed, SourceMetadata, SourceTranscript, SourceComments}, bundle.AvailableSources())

	bundle.Missing = map[string]string{SourceComments: "timed out"}
	require.Equal(t, []string{SourceOEmbed, SourceMetadata, SourceTranscript}, bundle.AvailableSources())

	bundle.Transcript = nil
	bundle.Missing[SourceTranscript] = "transcript unavailable: no caption tracks"
	require.Equal(t, []string{SourceOEmbed, SourceMetadata}, bundle.AvailableSources())
}

// TestAvailableSourcesEmptyComments verifies a successful fetch that found
// zero comments still counts as an available source.
func TestAvailableSourcesEmptyComments(t *testing.T) {
	t.Parallel()

	bundle := &SignalBundle{
		OEmbed:   &OEmbed{Title: "t"},
		Comments: nil,
		Missing:  map[string]string{SourceMetadata: "status 404", SourceTranscript: "timed out"},
	}
	require.Equal(t, []string{SourceOEmbed, SourceComments}, bundle.AvailableSources())
}
