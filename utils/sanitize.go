package utils

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = sync.OnceValue(bluemonday.StrictPolicy)

// PlainText strips every HTML element from s and decodes entities, so feed
// snippets read as text in Markdown and terminal output.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy().Sanitize(s)))
}
