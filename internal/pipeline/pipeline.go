// Package pipeline processes feed items into summarized articles: fetch,
// extract, clean, summarize, then persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/newsbrief/internal/bullets"
	"github.com/hyperifyio/newsbrief/internal/clean"
	"github.com/hyperifyio/newsbrief/internal/extract"
	"github.com/hyperifyio/newsbrief/internal/feed"
	"github.com/hyperifyio/newsbrief/internal/fetch"
	"github.com/hyperifyio/newsbrief/internal/robots"
	"github.com/hyperifyio/newsbrief/internal/sink"
	"github.com/hyperifyio/newsbrief/internal/summarize"
)

// ErrDisallowed marks an item skipped because robots.txt forbids it.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Article is a feed item with its summary.
type Article struct {
	feed.Item
	Summary      bullets.Summary `json:"summary"`
	SummarizedBy string          `json:"summarized_by"`
	Strategy     string          `json:"strategy,omitempty"`
	Persisted    bool            `json:"persisted"`
}

// Record converts the article into its persisted form.
func (a Article) Record() sink.Record {
	return sink.Record{
		Title:     a.Title,
		URL:       a.URL,
		Source:    a.Source,
		Published: a.Published,
		Summary:   a.Summary.String(),
		Category:  a.Category,
	}
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Page, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, cleanText, title string) summarize.Result
}

type RobotsChecker interface {
	Check(ctx context.Context, pageURL string) (robots.Decision, error)
}

// maxCrawlDelay caps a robots.txt Crawl-delay.
const maxCrawlDelay = time.Minute

// Pipeline holds the collaborators and pacing for one batch run. Only the
// per-host crawl schedule changes per article and it is locked, so Process
// is safe to call concurrently.
type Pipeline struct {
	Fetcher    Fetcher
	Extractor  extract.Extractor
	Cleaner    *clean.Cleaner
	Summarizer Summarizer
	// Robots is optional; lookup errors allow the fetch.
	Robots RobotsChecker
	// Sink is optional; without it articles are processed but not persisted.
	Sink sink.Sink

	// Workers bounds concurrent articles. Zero means 1.
	Workers int
	// Interval is the aggregate minimum spacing of article starts.
	Interval time.Duration
	// Jitter adds up to this much random delay after each start slot.
	Jitter time.Duration
	// PersistDelay is the jittered pause between sink writes.
	PersistDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	crawl crawlGate
}

// crawlGate spaces fetches to hosts whose robots.txt sets a Crawl-delay.
type crawlGate struct {
	mu   sync.Mutex
	next map[string]time.Time
}

// reserve books the next fetch slot for host and returns how long to wait
// for it. Slots for one host are at least delay apart.
func (g *crawlGate) reserve(host string, delay time.Duration, now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next == nil {
		g.next = make(map[string]time.Time)
	}
	start := now
	if t, ok := g.next[host]; ok && t.After(now) {
		start = t
	}
	g.next[host] = start.Add(delay)
	return start.Sub(now)
}

// Stats summarizes a batch.
type Stats struct {
	Total         int            `json:"total"`
	Processed     int            `json:"processed"`
	Skipped       int            `json:"skipped"`
	Persisted     int            `json:"persisted"`
	PersistFailed int            `json:"persist_failed"`
	ByProvider    map[string]int `json:"by_provider"`
}

// Process turns one item into an Article. Errors mean the item was skipped;
// a page without extractable text still yields a title-based summary.
func (p *Pipeline) Process(ctx context.Context, item feed.Item) (Article, error) {
	if p.Robots != nil {
		d, err := p.Robots.Check(ctx, item.URL)
		switch {
		case err != nil:
			log.Debug().Err(err).Str("url", item.URL).Msg("robots lookup failed, fetching anyway")
		case !d.Allowed:
			return Article{}, fmt.Errorf("%s: %w", item.URL, ErrDisallowed)
		case d.CrawlDelay > 0:
			if err := p.waitCrawlDelay(ctx, item.URL, d.CrawlDelay); err != nil {
				return Article{}, err
			}
		}
	}
	page, err := p.Fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return Article{}, fmt.Errorf("fetch %s: %w", item.URL, err)
	}
	pageURL := page.FinalURL
	if pageURL == "" {
		pageURL = item.URL
	}

	var text, strategy string
	if doc, ok := p.Extractor.Extract(page.Body, pageURL); ok {
		strategy = doc.Strategy
		cleaner := p.Cleaner
		if cleaner == nil {
			cleaner = clean.New(clean.Options{})
		}
		text = cleaner.Clean(doc.RawText)
	}
	if strings.TrimSpace(item.Title) == "" {
		if md, err := extract.ReadMetadata(page.Body, pageURL); err == nil {
			item.Title = md.Title
			if item.Description == "" {
				item.Description = md.Excerpt
			}
		}
	}

	res := p.Summarizer.Summarize(ctx, text, item.Title)
	log.Info().Str("url", item.URL).Str("strategy", strategy).Str("provider", res.Provider).Int("bullets", len(res.Summary)).Msg("article summarized")
	return Article{Item: item, Summary: res.Summary, SummarizedBy: res.Provider, Strategy: strategy}, nil
}

// Run processes items with at most Workers in flight and article starts
// paced by a single shared limiter, then persists results sequentially.
// Returned articles keep the input order; skipped items are omitted.
func (p *Pipeline) Run(ctx context.Context, items []feed.Item) ([]Article, Stats) {
	stats := Stats{Total: len(items), ByProvider: map[string]int{}}
	results := make([]*Article, len(items))

	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	limit := rate.Inf
	if p.Interval > 0 {
		limit = rate.Every(p.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var mu sync.Mutex
	for i, item := range items {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		if err := p.pause(gctx, jitter(p.Jitter)); err != nil {
			break
		}
		g.Go(func() error {
			a, err := p.Process(gctx, item)
			if err != nil {
				log.Warn().Err(err).Str("url", item.URL).Msg("article skipped")
				return nil
			}
			mu.Lock()
			results[i] = &a
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var out []Article
	for _, a := range results {
		if a == nil {
			continue
		}
		out = append(out, *a)
	}
	stats.Processed = len(out)
	stats.Skipped = stats.Total - stats.Processed

	for i := range out {
		stats.ByProvider[out[i].SummarizedBy]++
		if p.Sink == nil || ctx.Err() != nil {
			continue
		}
		if i > 0 {
			if err := p.pause(ctx, p.PersistDelay/2+jitter(p.PersistDelay)); err != nil {
				continue
			}
		}
		if err := p.Sink.Save(ctx, out[i].Record()); err != nil {
			var partial *sink.PartialError
			if !errors.As(err, &partial) {
				stats.PersistFailed++
				log.Warn().Err(err).Str("url", out[i].URL).Str("sink", p.Sink.Name()).Msg("persist failed")
				continue
			}
			// a retry would duplicate the record in the sinks that took it
			log.Warn().Err(err).Str("url", out[i].URL).Str("sink", p.Sink.Name()).Msg("persisted to some sinks only")
		}
		out[i].Persisted = true
		stats.Persisted++
	}
	return out, stats
}

func (p *Pipeline) waitCrawlDelay(ctx context.Context, pageURL string, delay time.Duration) error {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil
	}
	delay = min(delay, maxCrawlDelay)
	wait := p.crawl.reserve(strings.ToLower(u.Host), delay, time.Now())
	if wait > 0 {
		log.Debug().Str("host", u.Host).Dur("wait", wait).Msg("honouring crawl-delay")
	}
	return p.pause(ctx, wait)
}

func (p *Pipeline) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter draws independently per call from the shared top-level source.
func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
