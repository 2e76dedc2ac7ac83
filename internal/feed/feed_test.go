package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/newsbrief/internal/fetch"
)

type stubFetcher map[string]string

func (s stubFetcher) Fetch(_ context.Context, rawURL string) (fetch.Page, error) {
	body, ok := s[rawURL]
	if !ok {
		return fetch.Page{}, &fetch.StatusError{Code: 404, URL: rawURL}
	}
	return fetch.Page{Body: []byte(body), ContentType: "application/rss+xml", FinalURL: rawURL, Status: 200}, nil
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const rss = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Tech Daily</title>
<item><title>Acme  raises $30M</title><link>https://example.com/acme</link>
  <pubDate>Sun, 10 Mar 2024 08:00:00 GMT</pubDate>
  <description>&lt;p&gt;Acme &lt;b&gt;closed&lt;/b&gt; a round.&lt;/p&gt;</description></item>
<item><title>Old news</title><link>https://example.com/old</link>
  <pubDate>Fri, 01 Mar 2024 08:00:00 GMT</pubDate></item>
<item><title>No date</title><link>https://example.com/nodate</link></item>
<item><title>No link</title></item>
</channel></rss>`

const atom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Health Wire</title>
<entry><title>HealthCo Raises $50M Series C</title><link href="https://example.org/healthco"/>
<updated>2024-03-10T09:00:00Z</updated><summary>` + "LONG" + `</summary></entry>
<entry><title>Dup</title><link href="https://Example.com/acme?utm_source=rss#top"/><updated>2024-03-10T09:00:00Z</updated></entry>
</feed>`

func TestPoll_WindowAndFields(t *testing.T) {
	p := &Poller{Fetcher: stubFetcher{"https://feeds/tech": rss}, now: func() time.Time { return fixedNow }}
	items, err := p.Poll(context.Background(), "Tech", "https://feeds/tech")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, Item{
		Title:       "Acme raises $30M",
		URL:         "https://example.com/acme",
		Source:      "Tech Daily",
		Published:   time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		Description: "Acme closed a round.",
		Category:    "Tech",
	}, withUTC(items[0]))
	assert.Equal(t, "https://example.com/nodate", items[1].URL)
	assert.True(t, items[1].Published.Equal(fixedNow))
}

func TestPoll_TruncatesDescription(t *testing.T) {
	body := strings.Replace(atom, "LONG", strings.Repeat("word ", 100), 1)
	p := &Poller{Fetcher: stubFetcher{"https://feeds/health": body}, DescriptionChars: 20, now: func() time.Time { return fixedNow }}
	items, err := p.Poll(context.Background(), "Health", "https://feeds/health")
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "Health Wire", items[0].Source)
	assert.Len(t, []rune(items[0].Description), 20)
}

func TestPoll_Errors(t *testing.T) {
	p := &Poller{Fetcher: stubFetcher{"https://feeds/bad": "not a feed"}}
	_, err := p.Poll(context.Background(), "x", "https://feeds/missing")
	var se *fetch.StatusError
	assert.True(t, errors.As(err, &se))
	_, err = p.Poll(context.Background(), "x", "https://feeds/bad")
	assert.Error(t, err)
}

func TestPollAll_SortedCategoriesDedupAndErrors(t *testing.T) {
	p := &Poller{
		Fetcher: stubFetcher{"https://feeds/tech": rss, "https://feeds/health": atom},
		now:     func() time.Time { return fixedNow },
	}
	items, errs := p.PollAll(context.Background(), map[string][]string{
		"Tech":   {"https://feeds/tech", "https://feeds/missing"},
		"Health": {"https://feeds/health"},
	})
	require.Len(t, errs, 1)
	var urls []string
	for _, it := range items {
		urls = append(urls, it.URL)
	}
	// Health sorts first and claims the shared URL
	assert.Equal(t, []string{"https://example.org/healthco", "https://example.com/acme", "https://example.com/nodate"}, urls)
	assert.Equal(t, "Health", items[1].Category)
}

func withUTC(it Item) Item {
	it.Published = it.Published.UTC()
	return it
}
