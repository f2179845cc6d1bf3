package collector

import (
	"bytes"
	"net/http"
	"strings"
)

// DefaultChallengeMarkers are lower-case substrings found on bot-check pages.
var DefaultChallengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"please wait",
	"cloudflare",
	"ray id",
	"security check",
	"browser check",
	"請稍候",
	"正在檢查您的瀏覽器",
	"驗證中",
}

// ChallengeDetector recognizes challenge responses by status code or body text.
type ChallengeDetector struct {
	markers []string
}

// NewChallengeDetector lower-cases the given markers; nil selects the defaults.
func NewChallengeDetector(markers []string) *ChallengeDetector {
	if len(markers) == 0 {
		markers = DefaultChallengeMarkers
	}
	d := &ChallengeDetector{markers: make([]string, 0, len(markers))}
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			d.markers = append(d.markers, m)
		}
	}
	return d
}

// IsChallenge reports whether a response with this status and body is a challenge.
func (d *ChallengeDetector) IsChallenge(status int, body []byte) bool {
	return status == http.StatusForbidden || d.HasMarker(string(body))
}

// HasMarker reports whether text contains any challenge marker, ignoring case.
func (d *ChallengeDetector) HasMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range d.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// looksLikeJSON accepts a body when the content type says JSON or the payload
// starts like a JSON document.
func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
