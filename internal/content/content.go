// ABOUTME: Content processing utilities for catalog items
// ABOUTME: Sanitizes upstream HTML, converts to Markdown, and builds excerpts

package content

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

// htmlTagPattern matches common HTML tags. The bracket must touch the
// tag name and the name must end at a word boundary, so prose
// comparisons like "a < b and b > c" don't classify as markup.
var htmlTagPattern = regexp.MustCompile(`<(p|div|span|a|br|img|h[1-6]|ul|ol|li|table|tr|td|th|strong|em|b|i|code|pre|blockquote)\b[^>]*>`)

var sanitizePolicy = bluemonday.UGCPolicy()

// IsHTML checks if content appears to be HTML
func IsHTML(content string) bool {
	if strings.Contains(content, "<!DOCTYPE") || strings.Contains(content, "<html") {
		return true
	}
	return htmlTagPattern.MatchString(content)
}

// Sanitize strips scripts, event handlers, and other unsafe markup from
// upstream HTML. Non-HTML content passes through unchanged.
func Sanitize(content string) string {
	if !IsHTML(content) {
		return content
	}
	return sanitizePolicy.Sanitize(content)
}

// ToMarkdown converts HTML content to Markdown.
// If the content doesn't appear to be HTML, returns it unchanged.
func ToMarkdown(content string) string {
	if content == "" || !IsHTML(content) {
		return content
	}

	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		// If conversion fails, return original content
		return content
	}
	return strings.TrimSpace(markdown)
}

// stripTags removes any remaining markup for plain-text use.
var stripTagsPattern = regexp.MustCompile(`<[^>]*>`)

// Excerpt produces a plain-text summary of at most max runes, cut at a
// word boundary with a trailing ellipsis.
func Excerpt(content string, max int) string {
	text := content
	if IsHTML(text) {
		text = stripTagsPattern.ReplaceAllString(text, " ")
	}
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
