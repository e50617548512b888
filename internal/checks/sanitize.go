package checks

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const maxErrorLength = 300

var strictPolicy = bluemonday.StrictPolicy()

// Sanitize turns an upstream error string into short plain text fit for
// display: markup stripped, whitespace collapsed, truncated.
func Sanitize(s string) string {
	text := html.UnescapeString(strictPolicy.Sanitize(s))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "Unknown error"
	}

	if utf8.RuneCountInString(text) <= maxErrorLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxErrorLength-1])) + "…"
}
