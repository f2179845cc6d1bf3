package browser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonPrefixes locate embedded payloads when the page has no usable <pre>.
var jsonPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`\{"snapshots":\s*\[`),
	regexp.MustCompile(`\[\{"item_name"`),
	regexp.MustCompile(`\{"success":\s*true`),
}

// ExtractJSON pulls a JSON document out of rendered page source. Chrome wraps
// raw JSON responses in a <pre> element, which is tried first; otherwise the
// source is scanned for known payload prefixes.
func ExtractJSON(source string) ([]byte, bool) {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(source)); err == nil {
		var found []byte
		doc.Find("pre").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if (strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")) && json.Valid([]byte(text)) {
				found = []byte(text)
				return false
			}
			return true
		})
		if found != nil {
			return found, true
		}
	}

	for _, re := range jsonPrefixes {
		for _, loc := range re.FindAllStringIndex(source, -1) {
			if seg, ok := ScanBalanced(source, loc[0]); ok && json.Valid([]byte(seg)) {
				return []byte(seg), true
			}
		}
	}
	return nil, false
}

// ScanBalanced returns the text from the first '{' or '[' at or after from up
// to its matching closing delimiter. Delimiters inside string literals are
// ignored. It reports false when the input ends before the value closes.
func ScanBalanced(s string, from int) (string, bool) {
	if from < 0 || from >= len(s) {
		return "", false
	}
	depth, start := 0, -1
	inString, escaped := false, false
	for i := from; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{', '[':
			if start < 0 {
				start = i
			}
			depth++
		case '}', ']':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
