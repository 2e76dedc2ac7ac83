package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/newsbrief/internal/cache"
	"github.com/hyperifyio/newsbrief/internal/retry"
)

// Page is a fetched response body. It is discarded once extracted.
type Page struct {
	Body        []byte
	ContentType string
	FinalURL    string
	Status      int
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL) }

var (
	// ErrUnsupportedContentType is returned for bodies that are neither HTML nor XML.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrUnsupportedScheme is returned for non-HTTP(S) URLs.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// Client wraps http.Client and provides timeouts, rotating identity headers
// and bounded retry on transient errors.
type Client struct {
	HTTPClient *http.Client
	// Identities is the header pool drawn from per request. Empty uses DefaultIdentities.
	Identities []Identity
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// Backoff is the first retry delay; later delays grow exponentially.
	Backoff time.Duration
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// MaxBodyBytes caps how much of a response is read. Zero means 5 MiB.
	MaxBodyBytes int64
	// Optional on-disk cache for HTTP GET bodies and headers.
	Cache *cache.HTTPCache

	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int

	// pick returns an index in [0,n); tests replace it for deterministic headers.
	pick func(n int) int

	limiter     chan struct{}
	limiterOnce sync.Once
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Fetch issues a GET with context, a randomly drawn identity and bounded
// retry for transient errors.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return Page{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, rawURL)
	}

	var etag, lastMod string
	if c.Cache != nil {
		if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	initial := c.Backoff
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}

	var page Page
	var newEtag, newLastMod string
	op := func() error {
		var err error
		page, newEtag, newLastMod, err = c.tryOnce(ctx, rawURL, etag, lastMod)
		return err
	}
	if err := retry.Do(ctx, retry.Exponential(attempts, initial, 10*initial), "fetch", op, isTransient); err != nil {
		return Page{}, err
	}

	if c.Cache != nil {
		switch page.Status {
		case http.StatusOK:
			_ = c.Cache.Save(ctx, rawURL, page.ContentType, newEtag, newLastMod, page.Body)
		case http.StatusNotModified:
			cached, err := c.Cache.LoadBody(ctx, rawURL)
			if err != nil {
				return Page{}, fmt.Errorf("load cached body: %w", err)
			}
			page.Body = cached
			if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && meta != nil && page.ContentType == "" {
				page.ContentType = meta.ContentType
			}
		}
	}
	return page, nil
}

func (c *Client) tryOnce(ctx context.Context, rawURL string, etag string, lastMod string) (Page, string, string, error) {
	c.acquire()
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, "", "", fmt.Errorf("new request: %w", err)
	}
	id := c.identity()
	id.apply(req)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return Page{}, "", "", err
	}
	defer resp.Body.Close()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode == http.StatusNotModified {
		// 304: no body expected
		return Page{ContentType: contentType, FinalURL: finalURL, Status: resp.StatusCode}, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, "", "", &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	if !isAllowedContentType(contentType) {
		return Page{}, "", "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	var body io.Reader = io.LimitReader(resp.Body, limit)
	if isHTMLContentType(contentType) {
		// Feeds declare their own encoding; only HTML is transcoded here.
		if r, err := charset.NewReader(body, contentType); err == nil {
			body = r
		}
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return Page{}, "", "", fmt.Errorf("read body: %w", err)
	}
	log.Debug().Str("url", rawURL).Int("status", resp.StatusCode).Int("bytes", len(b)).Msg("fetched")
	return Page{Body: b, ContentType: contentType, FinalURL: finalURL, Status: resp.StatusCode}, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

// isTransient treats network failures, timeouts and non-2xx statuses as
// retryable. Scheme and content-type rejections are permanent.
func isTransient(err error) bool {
	if errors.Is(err, ErrUnsupportedContentType) || errors.Is(err, ErrUnsupportedScheme) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func (c *Client) identity() Identity {
	pool := c.Identities
	if len(pool) == 0 {
		pool = DefaultIdentities
	}
	pick := c.pick
	if pick == nil {
		pick = rand.IntN
	}
	return pool[pick(len(pool))]
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func isAllowedContentType(ct string) bool {
	if isHTMLContentType(ct) {
		return true
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	// servers that omit the header are given the benefit of the doubt
	if ct == "" {
		return true
	}
	for _, p := range []string{"application/rss+xml", "application/atom+xml", "application/xml", "text/xml", "application/rdf+xml"} {
		if strings.HasPrefix(ct, p) {
			return true
		}
	}
	return false
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
