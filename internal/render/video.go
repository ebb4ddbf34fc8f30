package render

import (
	"net/url"
	"regexp"
	"strings"
)

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ResolveYouTubeID extracts the canonical eleven-character video
// identifier from the URL shapes authors paste: full watch URLs, short
// youtu.be links, embed URLs, shorts URLs, or a bare identifier.
func ResolveYouTubeID(rawURL string) (string, bool) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", false
	}
	if youtubeIDPattern.MatchString(trimmed) {
		return trimmed, true
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	switch host {
	case "youtu.be":
		return validateYouTubeID(strings.TrimPrefix(parsed.Path, "/"))
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		if identifier := parsed.Query().Get("v"); identifier != "" {
			return validateYouTubeID(identifier)
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/"} {
			if strings.HasPrefix(parsed.Path, prefix) {
				remainder := strings.TrimPrefix(parsed.Path, prefix)
				if slash := strings.IndexByte(remainder, '/'); slash >= 0 {
					remainder = remainder[:slash]
				}
				return validateYouTubeID(remainder)
			}
		}
	}
	return "", false
}

func validateYouTubeID(candidate string) (string, bool) {
	if youtubeIDPattern.MatchString(candidate) {
		return candidate, true
	}
	return "", false
}
