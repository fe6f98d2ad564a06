package blogservice

import (
	"strings"
	"unicode/utf8"
)

// readTime is the number of minutes needed to read content at 200 words per
// minute, rounded up. Non-empty content always takes at least a minute.
func readTime(content string) int {
	if content == "" {
		return 0
	}

	words := len(strings.Fields(content))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute

	return max(minutes, 1)
}

// deriveExcerpt returns the first 200 characters of content followed by an ellipsis.
func deriveExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= maxExcerptLength {
		return content + excerptEllipsis
	}

	return string([]rune(content)[:maxExcerptLength]) + excerptEllipsis
}

// derive recomputes the fields that follow from the content.
func (b *Blog) derive() {
	b.ReadTime = readTime(b.Content)
	if !b.ExcerptExplicit || b.Excerpt == "" {
		b.ExcerptExplicit = false
		b.Excerpt = deriveExcerpt(b.Content)
	}
}
