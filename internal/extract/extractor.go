// Package extract isolates the main readable text of a news article from
// arbitrary HTML without site-specific rules.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/newsbrief/internal/clean"
)

// Extractor turns raw HTML into an article Document. ok is false when no
// strategy found enough text; that is an outcome, not an error.
type Extractor interface {
	Extract(raw []byte, pageURL string) (doc Document, ok bool)
}

// Document is the extracted, not yet cleaned, article text.
type Document struct {
	URL      string
	RawText  string
	Strategy string
}

// Strategy names reported in Document.Strategy.
const (
	StrategySelectorPrefix = "selector:"
	StrategyParagraphs     = "paragraphs"
	StrategyDocument       = "document"
)

// Options holds the substance thresholds, all measured in runes.
type Options struct {
	SelectorMinChars  int `yaml:"selectorMinChars" json:"selectorMinChars"`
	MinParagraphChars int `yaml:"minParagraphChars" json:"minParagraphChars"`
	MinTextChars      int `yaml:"minTextChars" json:"minTextChars"`
}

func DefaultOptions() Options {
	return Options{SelectorMinChars: 300, MinParagraphChars: 30, MinTextChars: 200}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SelectorMinChars <= 0 {
		o.SelectorMinChars = d.SelectorMinChars
	}
	if o.MinParagraphChars <= 0 {
		o.MinParagraphChars = d.MinParagraphChars
	}
	if o.MinTextChars <= 0 {
		o.MinTextChars = d.MinTextChars
	}
	return o
}

// contentSelectors is tried in order, most specific first.
var contentSelectors = []string{
	".entry-content",
	".post-content",
	".article-content",
	".article-body",
	"[itemprop=articleBody]",
	".story-body",
	".post-body",
	"article",
	"[role=main]",
	"main",
	".main-content",
	"#content",
	".content",
}

// paragraphScope picks the container that paragraph assembly reads from.
const paragraphScope = "article, main, [role=main], #content, .content"

// CascadeExtractor runs noise removal, the selector cascade, paragraph
// assembly and the full-document fallback, first success wins.
type CascadeExtractor struct {
	Options Options
	Cleaner *clean.Cleaner
}

// New returns a CascadeExtractor with zero-valued thresholds defaulted.
func New(opts Options, cleaner *clean.Cleaner) *CascadeExtractor {
	if cleaner == nil {
		cleaner = clean.New(clean.Options{})
	}
	return &CascadeExtractor{Options: opts.withDefaults(), Cleaner: cleaner}
}

func (e *CascadeExtractor) Extract(raw []byte, pageURL string) (Document, bool) {
	opts := e.Options.withDefaults()
	cleaner := e.Cleaner
	if cleaner == nil {
		cleaner = clean.New(clean.Options{})
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("extract: parse failed")
		return Document{}, false
	}
	removeNoise(doc)

	if text, sel, ok := bySelectors(doc, opts); ok {
		return e.done(pageURL, text, StrategySelectorPrefix+sel), true
	}
	if text, ok := byParagraphs(doc, opts); ok {
		return e.done(pageURL, text, StrategyParagraphs), true
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	text := cleaner.Clean(blockText(body))
	if runeLen(text) >= opts.MinTextChars {
		return e.done(pageURL, text, StrategyDocument), true
	}
	log.Debug().Str("url", pageURL).Msg("extract: no strategy cleared the substance threshold")
	return Document{}, false
}

func (e *CascadeExtractor) done(pageURL, text, strategy string) Document {
	log.Debug().Str("url", pageURL).Str("strategy", strategy).Int("chars", runeLen(text)).Msg("extracted")
	return Document{URL: pageURL, RawText: text, Strategy: strategy}
}

// bySelectors returns the largest element of the first selector whose
// largest match clears SelectorMinChars.
func bySelectors(doc *goquery.Document, opts Options) (string, string, bool) {
	minChars := opts.SelectorMinChars
	if opts.MinTextChars > minChars {
		minChars = opts.MinTextChars
	}
	for _, sel := range contentSelectors {
		best, bestLen := "", -1
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := blockText(s)
			// strict comparison keeps the first match on ties
			if n := runeLen(text); n > bestLen {
				best, bestLen = text, n
			}
		})
		if bestLen >= minChars {
			return best, sel, true
		}
	}
	return "", "", false
}

func byParagraphs(doc *goquery.Document, opts Options) (string, bool) {
	scope := doc.Find(paragraphScope).First()
	if scope.Length() == 0 {
		scope = doc.Selection
	}
	var kept []string
	scope.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if runeLen(text) < opts.MinParagraphChars || clean.IsBoilerplate(text) {
			return
		}
		kept = append(kept, text)
	})
	if len(kept) < 2 {
		return "", false
	}
	text := strings.Join(kept, "\n")
	if runeLen(text) < opts.MinTextChars {
		return "", false
	}
	return text, true
}

func runeLen(s string) int {
	return len([]rune(s))
}
