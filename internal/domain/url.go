package domain

import (
	"regexp"
	"strings"
)

// CanonicalWatchURL is the prefix every shorts link is rewritten to
const CanonicalWatchURL = "https://www.youtube.com/watch?v="

const videoIDPattern = `([A-Za-z0-9_-]+)`

var (
	shortsURLPattern = regexp.MustCompile(`(?i)^https?://(?:www\.|m\.)?youtube\.com/shorts/` + videoIDPattern)

	// Accepted link shapes. The id capture stops at the first character
	// outside the id alphabet, so trailing query parameters are allowed.
	supportedURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/watch\?(?:[^\s#]*&)?v=` + videoIDPattern),
		regexp.MustCompile(`(?i)^https?://youtu\.be/` + videoIDPattern),
		regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/shorts/` + videoIDPattern),
		regexp.MustCompile(`(?i)^https?://m\.youtube\.com/watch\?(?:[^\s#]*&)?v=` + videoIDPattern),
	}
)

// NormalizeURL canonicalizes user input: trims whitespace, enforces a scheme
// and rewrites shorts links to the watch page form.
func NormalizeURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}

	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		url = "https://" + url
	}

	if match := shortsURLPattern.FindStringSubmatch(url); match != nil {
		return CanonicalWatchURL + match[1]
	}

	return url
}

// ValidateURL reports whether url has one of the supported link shapes.
// It never touches the network.
func ValidateURL(url string) bool {
	if url == "" {
		return false
	}
	for _, pattern := range supportedURLPatterns {
		if pattern.MatchString(url) {
			return true
		}
	}
	return false
}

// ExtractVideoID returns the video id of a supported url, or "" when the
// url is not supported
func ExtractVideoID(url string) string {
	for _, pattern := range supportedURLPatterns {
		if match := pattern.FindStringSubmatch(url); match != nil {
			return match[1]
		}
	}
	return ""
}
