package summary

// TruncationMarker separates the head and tail of a middle-out truncated
// transcript so the model knows material was elided.
const TruncationMarker = "\n[... transcript truncated ...]\n"

// TruncateMiddle shortens text to max runes by keeping the head and the
// tail and splicing marker between them, so both the opening and the ending
// of the transcript survive. The result is exactly max plus the marker
// length when truncation happens; text at or under the limit is returned
// unchanged. Rune-based so multibyte characters are never split.
func TruncateMiddle(text string, max int, marker string) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	head := max / 2
	tail := max - head
	return string(runes[:head]) + marker + string(runes[len(runes)-tail:])
}
