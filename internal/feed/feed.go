// Package feed polls RSS and Atom feeds for recent article links.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/newsbrief/internal/fetch"
)

// Item is one article announced by a feed.
type Item struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Published   time.Time `json:"published"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
}

// Fetcher is satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Page, error)
}

// Poller turns feed URLs into recent Items.
type Poller struct {
	Fetcher Fetcher
	// Window excludes items published earlier than now-Window. Zero means 24h.
	Window time.Duration
	// DescriptionChars caps Item.Description in runes. Zero means 200.
	DescriptionChars int

	now func() time.Time
}

func (p *Poller) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// Poll fetches and parses one feed and returns its items inside the window,
// in feed order. Items without a date are treated as published now.
func (p *Poller) Poll(ctx context.Context, category, feedURL string) ([]Item, error) {
	page, err := p.Fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	window := p.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := p.clock()
	cutoff := now.Add(-window)
	source := strings.TrimSpace(parsed.Title)
	if source == "" {
		if u, err := url.Parse(feedURL); err == nil {
			source = u.Hostname()
		}
	}

	var items []Item
	for _, it := range parsed.Items {
		link := CanonicalURL(it.Link)
		if link == "" {
			continue
		}
		published := now
		switch {
		case it.PublishedParsed != nil:
			published = *it.PublishedParsed
		case it.UpdatedParsed != nil:
			published = *it.UpdatedParsed
		}
		if published.Before(cutoff) {
			continue
		}
		items = append(items, Item{
			Title:       strings.Join(strings.Fields(it.Title), " "),
			URL:         link,
			Source:      source,
			Published:   published,
			Description: p.description(it.Description),
			Category:    category,
		})
	}
	log.Debug().Str("url", feedURL).Str("category", category).Int("items", len(items)).Msg("feed polled")
	return items, nil
}

// PollAll polls every feed, categories in sorted order, dropping repeated
// canonical URLs. Feed errors are collected and do not stop the run.
func (p *Poller) PollAll(ctx context.Context, sources map[string][]string) ([]Item, []error) {
	categories := make([]string, 0, len(sources))
	for c := range sources {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var items []Item
	var errs []error
	seen := make(map[string]struct{})
	for _, category := range categories {
		for _, feedURL := range sources[category] {
			if ctx.Err() != nil {
				return items, append(errs, ctx.Err())
			}
			got, err := p.Poll(ctx, category, feedURL)
			if err != nil {
				log.Warn().Err(err).Str("url", feedURL).Msg("feed skipped")
				errs = append(errs, err)
				continue
			}
			for _, it := range got {
				if _, dup := seen[it.URL]; dup {
					continue
				}
				seen[it.URL] = struct{}{}
				items = append(items, it)
			}
		}
	}
	return items, errs
}

func (p *Poller) description(raw string) string {
	text := raw
	if strings.ContainsAny(raw, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
			text = doc.Text()
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	max := p.DescriptionChars
	if max <= 0 {
		max = 200
	}
	if r := []rune(text); len(r) > max {
		text = string(r[:max])
	}
	return text
}
