package summary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTruncateMiddleUnderLimit verifies text at or under the limit is
// returned unchanged.
func TestTruncateMiddleUnderLimit(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", TruncateMiddle("short", 5, TruncationMarker))
	require.Equal(t, "short", TruncateMiddle("short", 100, TruncationMarker))
	require.Equal(t, "", TruncateMiddle("", 10, TruncationMarker))
}

// TestTruncateMiddleKeepsHeadAndTail verifies the truncated output keeps the
// opening and the ending of the original with the marker in between, and its
// length equals the limit plus the marker length.
func TestTruncateMiddleKeepsHeadAndTail(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	out := TruncateMiddle(text, 100, TruncationMarker)

	require.Len(t, []rune(out), 100+len([]rune(TruncationMarker)))
	require.True(t, strings.HasPrefix(out, "aaaa"))
	require.True(t, strings.HasSuffix(out, "zzzz"))
	require.Contains(t, out, TruncationMarker)

	head, tail, found := strings.Cut(out, TruncationMarker)
	require.True(t, found)
	require.Equal(t, strings.Repeat("a", 50), head)
	require.Equal(t, strings.Repeat("z", 50), tail)
}

// TestTruncateMiddleMultibyte verifies rune counting so multibyte text is
// never split inside a code point.
func TestTruncateMiddleMultibyte(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("é", 50) + strings.Repeat("ü", 50)
	out := TruncateMiddle(text, 10, "|")

	require.Equal(t, strings.Repeat("é", 5)+"|"+strings.Repeat("ü", 5), out)
}
