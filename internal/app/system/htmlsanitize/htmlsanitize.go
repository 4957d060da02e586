// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	rich   = newRichPolicy()
	strict = bluemonday.StrictPolicy()
)

// newRichPolicy allows the formatting a card description or comment may
// carry: the UGC set plus tables, class attributes and inline text marks.
func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("u", "s", "sub", "sup", "mark")
	p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td")
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")
	p.AllowAttrs("class").OnElements("table", "tr", "td", "th", "code", "pre")
	return p
}

// Sanitize removes scripts, event handlers, unsafe URLs and unknown elements
// from user-supplied HTML.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return rich.Sanitize(s)
}

// StripTags returns s with every tag removed, for single-line fields such as
// titles and label names.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return !strings.Contains(s, "<") || !strings.Contains(s, ">")
}

// PlainTextToHTML escapes s and wraps it in a paragraph, turning newlines
// into <br>.
func PlainTextToHTML(s string) string {
	if s == "" {
		return ""
	}
	escaped := html.EscapeString(s)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return "<p>" + escaped + "</p>"
}

// Prepare normalizes rich text for storage: plain text becomes a paragraph,
// markup is sanitized.
func Prepare(s string) string {
	if IsPlainText(s) {
		return PlainTextToHTML(s)
	}
	return Sanitize(s)
}
