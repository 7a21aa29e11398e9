package summary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseVideoIDShapes verifies every recognized URL shape carrying the
// same identifier yields that identifier.
func TestParseVideoIDShapes(t *testing.T) {
	t.Parallel()

	const id = "dQw4w9WgXcQ"
	shapes := []string{
		"https://www.youtube.com/watch?v=" + id,
		"http://youtube.com/watch?v=" + id + "&t=42s",
		"https://m.youtube.com/watch?v=" + id,
		"https://music.youtube.com/watch?v=" + id,
		"https://youtu.be/" + id,
		"https://youtu.be/" + id + "?si=share",
		"https://www.youtube.com/shorts/" + id,
		"https://www.youtube.com/embed/" + id,
		"https://www.youtube-nocookie.com/embed/" + id,
		"www.youtube.com/watch?v=" + id,
		"youtu.be/" + id,
	}
	for _, raw := range shapes {
		got, err := ParseVideoID(raw)
		require.NoError(t, err, "shape %q", raw)
		require.Equal(t, id, got, "shape %q", raw)
	}
}

// TestParseVideoIDRejectsOtherStrings verifies unrecognized inputs fail with
// InvalidVideoURLError.
func TestParseVideoIDRejectsOtherStrings(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   ",
		"not a url",
		"dQw4w9WgXcQ",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://vimeo.com/123456",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/shorts/",
		"https://www.youtube.com/embed/has spaces!",
		"https://youtu.be/",
	}
	for _, raw := range inputs {
		_, err := ParseVideoID(raw)
		require.Error(t, err, "input %q", raw)
		var invalid *InvalidVideoURLError
		require.True(t, errors.As(err, &invalid), "input %q", raw)
	}
}

// TestWatchURLRoundTrip checks the canonical watch URL parses back to the
// same identifier.
func TestWatchURLRoundTrip(t *testing.T) {
	t.Parallel()

	const id = "abc-DEF_123"
	got, err := ParseVideoID(WatchURL(id))
	require.NoError(t, err)
	require.Equal(t, id, got)
}
