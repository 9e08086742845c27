package commons

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText strips markup from operator-entered text and trims it. Entities
// produced by the policy are unescaped again because the text is stored and
// returned as plain JSON, never rendered as HTML here.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}
