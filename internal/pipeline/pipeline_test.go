package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/newsbrief/internal/bullets"
	"github.com/hyperifyio/newsbrief/internal/clean"
	"github.com/hyperifyio/newsbrief/internal/extract"
	"github.com/hyperifyio/newsbrief/internal/feed"
	"github.com/hyperifyio/newsbrief/internal/fetch"
	"github.com/hyperifyio/newsbrief/internal/robots"
	"github.com/hyperifyio/newsbrief/internal/sink"
	"github.com/hyperifyio/newsbrief/internal/summarize"
)

var articleHTML = "<html><head><title>Acme</title></head><body><article><p>" +
	strings.Repeat("Acme Corp raised $30 million in Series B funding to expand operations. ", 8) +
	"</p></article></body></html>"

type mapFetcher struct {
	pages    map[string]string
	inflight int32
	peak     int32
}

func (f *mapFetcher) Fetch(_ context.Context, rawURL string) (fetch.Page, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	body, ok := f.pages[rawURL]
	if !ok {
		return fetch.Page{}, &fetch.StatusError{Code: 404, URL: rawURL}
	}
	return fetch.Page{Body: []byte(body), FinalURL: rawURL, Status: 200}, nil
}

type echoSummarizer struct {
	mu    sync.Mutex
	texts map[string]string
}

func (s *echoSummarizer) Summarize(_ context.Context, cleanText, title string) summarize.Result {
	s.mu.Lock()
	if s.texts == nil {
		s.texts = map[string]string{}
	}
	s.texts[title] = cleanText
	s.mu.Unlock()
	if cleanText == "" {
		return summarize.Result{Summary: bullets.Summary{"Content unavailable for a detailed summary."}, Provider: "title"}
	}
	return summarize.Result{Summary: bullets.Summary{"Acme raised money to expand operations."}, Provider: "stub"}
}

type memSink struct {
	fail    map[string]bool
	records []sink.Record
}

func (m *memSink) Name() string { return "mem" }
func (m *memSink) Save(_ context.Context, r sink.Record) error {
	if m.fail[r.URL] {
		return errors.New("rejected")
	}
	m.records = append(m.records, r)
	return nil
}

type denyRobots struct{ deny string }

func (d denyRobots) Check(_ context.Context, u string) (robots.Decision, error) {
	if u == d.deny {
		return robots.Decision{Allowed: false}, nil
	}
	if strings.Contains(u, "robots-error") {
		return robots.Decision{}, errors.New("lookup failed")
	}
	return robots.Decision{Allowed: true}, nil
}

type delayRobots struct{ delay time.Duration }

func (d delayRobots) Check(context.Context, string) (robots.Decision, error) {
	return robots.Decision{Allowed: true, CrawlDelay: d.delay}, nil
}

type partialSink struct{ calls int }

func (s *partialSink) Name() string { return "notion+mongo" }
func (s *partialSink) Save(context.Context, sink.Record) error {
	s.calls++
	return &sink.PartialError{Saved: []string{"notion"}, Err: errors.New("mongo: down")}
}

func newPipeline(f Fetcher, s Summarizer) *Pipeline {
	return &Pipeline{
		Fetcher:    f,
		Extractor:  extract.New(extract.Options{}, nil),
		Cleaner:    clean.New(clean.Options{}),
		Summarizer: s,
		sleep:      func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}

func TestProcess_ExtractsCleansAndSummarizes(t *testing.T) {
	sum := &echoSummarizer{}
	p := newPipeline(&mapFetcher{pages: map[string]string{"https://a": articleHTML}}, sum)
	a, err := p.Process(context.Background(), feed.Item{Title: "Acme", URL: "https://a", Category: "Tech"})
	require.NoError(t, err)
	assert.Equal(t, "selector:article", a.Strategy)
	assert.Equal(t, "stub", a.SummarizedBy)
	assert.Equal(t, "Tech", a.Category)
	assert.Contains(t, sum.texts["Acme"], "Acme Corp raised $30 million")
}

func TestProcess_EmptyPageFallsToTitle(t *testing.T) {
	sum := &echoSummarizer{}
	p := newPipeline(&mapFetcher{pages: map[string]string{"https://e": "<html><body></body></html>"}}, sum)
	a, err := p.Process(context.Background(), feed.Item{Title: "HealthCo Raises $50M Series C", URL: "https://e"})
	require.NoError(t, err)
	assert.Equal(t, "", a.Strategy)
	assert.Equal(t, "title", a.SummarizedBy)
	assert.NotEmpty(t, a.Summary)
}

func TestProcess_RobotsAndFetchErrors(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{"https://ok/robots-error": articleHTML}}
	p := newPipeline(f, &echoSummarizer{})
	p.Robots = denyRobots{deny: "https://blocked"}

	_, err := p.Process(context.Background(), feed.Item{Title: "x", URL: "https://blocked"})
	assert.ErrorIs(t, err, ErrDisallowed)

	_, err = p.Process(context.Background(), feed.Item{Title: "x", URL: "https://missing"})
	var se *fetch.StatusError
	assert.True(t, errors.As(err, &se))

	_, err = p.Process(context.Background(), feed.Item{Title: "x", URL: "https://ok/robots-error"})
	assert.NoError(t, err)
}

func TestRun_OrderStatsAndPersistence(t *testing.T) {
	pages := map[string]string{}
	var items []feed.Item
	for _, u := range []string{"https://1", "https://2", "https://3", "https://4"} {
		pages[u] = articleHTML
		items = append(items, feed.Item{Title: "t " + u, URL: u})
	}
	items = append(items, feed.Item{Title: "gone", URL: "https://404"})

	f := &mapFetcher{pages: pages}
	p := newPipeline(f, &echoSummarizer{})
	p.Workers = 2
	ms := &memSink{fail: map[string]bool{"https://3": true}}
	p.Sink = ms

	out, stats := p.Run(context.Background(), items)
	require.Len(t, out, 4)
	for i, a := range out {
		assert.Equal(t, items[i].URL, a.URL)
	}
	assert.Equal(t, Stats{Total: 5, Processed: 4, Skipped: 1, Persisted: 3, PersistFailed: 1, ByProvider: map[string]int{"stub": 4}}, stats)
	assert.False(t, out[2].Persisted)
	assert.True(t, out[3].Persisted)
	assert.Len(t, ms.records, 3)
	assert.Equal(t, "• Acme raised money to expand operations.", ms.records[0].Summary)
	assert.LessOrEqual(t, atomic.LoadInt32(&f.peak), int32(2))
}

func TestRun_PacesStartsWithSharedLimiter(t *testing.T) {
	pages := map[string]string{"https://1": articleHTML, "https://2": articleHTML, "https://3": articleHTML}
	p := newPipeline(&mapFetcher{pages: pages}, &echoSummarizer{})
	p.Workers = 3
	p.Interval = 20 * time.Millisecond

	start := time.Now()
	out, _ := p.Run(context.Background(), []feed.Item{{Title: "a", URL: "https://1"}, {Title: "b", URL: "https://2"}, {Title: "c", URL: "https://3"}})
	assert.Len(t, out, 3)
	// burst of one: the second and third starts each wait an interval
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRun_WithoutSinkDoesNotPersist(t *testing.T) {
	p := newPipeline(&mapFetcher{pages: map[string]string{"https://1": articleHTML}}, &echoSummarizer{})
	out, stats := p.Run(context.Background(), []feed.Item{{Title: "a", URL: "https://1"}})
	require.Len(t, out, 1)
	assert.False(t, out[0].Persisted)
	assert.Equal(t, 0, stats.Persisted)
	assert.Equal(t, 0, stats.PersistFailed)
}

func TestProcess_HonoursCrawlDelayPerHost(t *testing.T) {
	pages := map[string]string{
		"https://news.example/a":  articleHTML,
		"https://news.example/b":  articleHTML,
		"https://other.example/c": articleHTML,
	}
	p := newPipeline(&mapFetcher{pages: pages}, &echoSummarizer{})
	p.Robots = delayRobots{delay: 2 * time.Second}
	var waits []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}

	for _, u := range []string{"https://news.example/a", "https://other.example/c", "https://news.example/b"} {
		_, err := p.Process(context.Background(), feed.Item{Title: "t", URL: u})
		require.NoError(t, err)
	}
	// only the second fetch to news.example waits
	require.Len(t, waits, 1)
	assert.Greater(t, waits[0], time.Second)
	assert.LessOrEqual(t, waits[0], 2*time.Second)
}

func TestCrawlGate_CapsAndSpacesSlots(t *testing.T) {
	var g crawlGate
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), g.reserve("h", 5*time.Second, now))
	assert.Equal(t, 5*time.Second, g.reserve("h", 5*time.Second, now))
	assert.Equal(t, 8*time.Second, g.reserve("h", 5*time.Second, now.Add(2*time.Second)))
	assert.Equal(t, time.Duration(0), g.reserve("h", 5*time.Second, now.Add(time.Minute)))

	p := newPipeline(nil, nil)
	var waited time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error { waited = d; return nil }
	require.NoError(t, p.waitCrawlDelay(context.Background(), "https://slow.example/1", time.Hour))
	require.NoError(t, p.waitCrawlDelay(context.Background(), "https://slow.example/2", time.Hour))
	assert.Greater(t, waited, maxCrawlDelay-time.Second)
	assert.LessOrEqual(t, waited, maxCrawlDelay)
}

func TestRun_PartialSinkSuccessCountsAsPersisted(t *testing.T) {
	p := newPipeline(&mapFetcher{pages: map[string]string{"https://1": articleHTML}}, &echoSummarizer{})
	ps := &partialSink{}
	p.Sink = ps
	out, stats := p.Run(context.Background(), []feed.Item{{Title: "a", URL: "https://1"}})
	require.Len(t, out, 1)
	assert.Equal(t, 1, ps.calls)
	assert.True(t, out[0].Persisted)
	assert.Equal(t, 1, stats.Persisted)
	assert.Equal(t, 0, stats.PersistFailed)
}

func TestJitterBounds(t *testing.T) {
	assert.Equal(t, time.Duration(0), jitter(0))
	for i := 0; i < 100; i++ {
		d := jitter(10 * time.Millisecond)
		assert.True(t, d >= 0 && d < 10*time.Millisecond)
	}
}
