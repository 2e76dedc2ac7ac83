package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockText renders a selection as plain text with one line per block-level
// element, internal whitespace collapsed and blank lines dropped.
func blockText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		collectText(&b, n)
	}
	return normalizeWhitespace(b.String())
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	block := n.Type == html.ElementNode && isBlock(n.Data)
	if block {
		b.WriteString("\n")
	}
	if n.Type == html.ElementNode && (n.Data == "br" || n.Data == "hr") {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if block {
		b.WriteString("\n")
	}
}

func isBlock(tag string) bool {
	switch strings.ToLower(tag) {
	case "p", "div", "section", "article", "main", "blockquote", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd", "table", "tr", "figure":
		return true
	}
	return false
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if collapsed := strings.Join(strings.Fields(line), " "); collapsed != "" {
			out = append(out, collapsed)
		}
	}
	return strings.Join(out, "\n")
}
