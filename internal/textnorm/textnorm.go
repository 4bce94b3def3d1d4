// Package textnorm normalizes chat message text before it reaches the corpus.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Question normalizes text into a corpus question: URLs are stripped and
// whitespace is collapsed.
func Question(text string) string {
	return collapse(urlPattern.ReplaceAllString(text, " "))
}

// Answer normalizes text into a corpus answer. URLs are preserved so learned
// answers can still link out.
func Answer(text string) string {
	return collapse(text)
}

func collapse(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
