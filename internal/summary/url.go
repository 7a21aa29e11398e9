package summary

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// WatchURL returns the canonical watch-page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ParseVideoID extracts the canonical 11-character video ID from a URL in
// one of the known shapes: watch?v=, youtu.be/, shorts/, or embed/. The
// scheme is optional. Anything else fails with *InvalidVideoURLError.
func ParseVideoID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &InvalidVideoURLError{Input: raw}
	}
	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return "", &InvalidVideoURLError{Input: raw}
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "music.")

	segments := splitPath(u.EscapedPath())
	switch host {
	case "youtu.be":
		if len(segments) >= 1 {
			return validateVideoID(raw, segments[0])
		}
	case "youtube.com", "youtube-nocookie.com":
		if id := u.Query().Get("v"); id != "" {
			return validateVideoID(raw, id)
		}
		if len(segments) >= 2 {
			switch segments[0] {
			case "shorts", "embed":
				return validateVideoID(raw, segments[1])
			}
		}
	}
	return "", &InvalidVideoURLError{Input: raw}
}

func validateVideoID(raw, id string) (string, error) {
	if !videoIDPattern.MatchString(id) {
		return "", &InvalidVideoURLError{Input: raw}
	}
	return id, nil
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
