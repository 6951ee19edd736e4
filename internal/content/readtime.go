// ABOUTME: Read-time estimation and truncation detection for item bodies
// ABOUTME: Pure text functions, no network access required

package content

import (
	"strings"
)

// wordsPerMinute is the assumed reading speed for estimates.
const wordsPerMinute = 200

// minFullLength is the length below which feed content is assumed to be
// a teaser rather than the full article.
const minFullLength = 280

// WordCount counts whitespace-separated words in plain text. HTML is
// stripped first so markup doesn't inflate the count.
func WordCount(text string) int {
	if IsHTML(text) {
		text = stripTagsPattern.ReplaceAllString(text, " ")
	}
	return len(strings.Fields(text))
}

// ReadTime estimates reading time in whole minutes at 200 wpm.
// Anything non-empty reads as at least one minute.
func ReadTime(text string) int {
	words := WordCount(text)
	if words == 0 {
		return 0
	}
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// truncationMarkers are phrases feeds append when they cut an article off.
var truncationMarkers = []string{
	"continue reading",
	"read more",
	"[…]",
	"[...]",
	"read the rest",
	"view full post",
}

// LooksTruncated reports whether feed content appears to be a cut-off
// teaser: it ends with an ellipsis, carries a continue-reading marker,
// or is shorter than the minimum full-article threshold.
func LooksTruncated(text string) bool {
	plain := text
	if IsHTML(plain) {
		plain = stripTagsPattern.ReplaceAllString(plain, " ")
	}
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return false
	}

	lower := strings.ToLower(plain)
	for _, marker := range truncationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	if strings.HasSuffix(plain, "…") || strings.HasSuffix(plain, "...") {
		return true
	}

	return len(plain) < minFullLength
}
