package collector

import (
	"math"
	"strings"

	"golang.org/x/net/html"
)

// skippedElements are subtrees whose text is never user-visible
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"svg":      true,
}

// visibleText walks the node tree and concatenates text nodes, skipping
// subtrees that do not render as page text
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collapseWhitespace replaces runs of whitespace with single spaces and
// trims the ends
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// estimateWordCount estimates the full-page word count from a bounded
// prefix sample, extrapolated proportionally to the full text length.
// Best-effort: not equivalent to an exact full-text count.
func estimateWordCount(text string) int {
	runes := []rune(text)
	fullLen := len(runes)
	if fullLen == 0 {
		return 0
	}

	sampleLen := fullLen
	if sampleLen > wordSampleLen {
		sampleLen = wordSampleLen
	}
	sampleWords := len(strings.Fields(string(runes[:sampleLen])))
	if sampleLen == fullLen {
		return sampleWords
	}

	return int(math.Round(float64(fullLen) / float64(sampleLen) * float64(sampleWords)))
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
