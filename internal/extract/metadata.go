package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Metadata is what readability recovers about a page besides its body.
type Metadata struct {
	Title   string
	Excerpt string
}

// ReadMetadata runs readability over the page to recover a title and excerpt
// for feed items that arrive without them.
func ReadMetadata(raw []byte, pageURL string) (Metadata, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Metadata{}, fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil {
		return Metadata{}, fmt.Errorf("readability: %w", err)
	}
	return Metadata{
		Title:   strings.TrimSpace(article.Title),
		Excerpt: strings.Join(strings.Fields(article.Excerpt), " "),
	}, nil
}
