package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/newsbrief/internal/cache"
)

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 2, Backoff: time.Millisecond, PerRequestTimeout: 2 * time.Second}
	page, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.ContentType == "" || len(page.Body) == 0 {
		t.Fatalf("expected content type and body")
	}
	if page.Status != 200 || page.FinalURL == "" {
		t.Fatalf("unexpected page metadata: %+v", page)
	}
}

func TestFetch_RetryOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(502)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 3, Backoff: time.Millisecond, PerRequestTimeout: 2 * time.Second}
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestFetch_ExhaustsAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(503)
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 3, Backoff: time.Millisecond, PerRequestTimeout: 2 * time.Second}
	_, err := c.Fetch(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 503 {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestFetch_RotatesIdentity(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("User-Agent")+"|"+r.Header.Get("Accept-Language"))
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ids := []Identity{{UserAgent: "ua-a", AcceptLanguage: "en"}, {UserAgent: "ua-b", AcceptLanguage: "fi"}}
	next := 0
	c := &Client{Identities: ids, MaxAttempts: 1, PerRequestTimeout: 2 * time.Second}
	c.pick = func(n int) int { i := next % n; next++; return i }
	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if len(seen) != 2 || seen[0] != "ua-a|en" || seen[1] != "ua-b|fi" {
		t.Fatalf("unexpected identities: %v", seen)
	}
}

func TestFetch_Conditional304_UsesCache(t *testing.T) {
	// First return 200 with ETag. Subsequent requests that include If-None-Match should get 304.
	var calls int
	etag := `"abc123"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/html")
		if calls == 1 {
			w.Header().Set("ETag", etag)
			_, _ = w.Write([]byte("first"))
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		fmt.Fprintln(w, "unexpected")
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, Cache: &cache.HTTPCache{Dir: t.TempDir()}}

	p1, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("first fetch error: %v", err)
	}
	if string(p1.Body) != "first" {
		t.Fatalf("unexpected body1: %q", string(p1.Body))
	}
	p2, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second fetch error: %v", err)
	}
	if string(p2.Body) != "first" {
		t.Fatalf("expected cached body, got %q", string(p2.Body))
	}
}

func TestFetch_RejectsNonHTTP(t *testing.T) {
	c := &Client{MaxAttempts: 1, PerRequestTimeout: time.Second}
	_, err := c.Fetch(context.Background(), "file:///etc/hosts")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestFetch_ContentTypeGating(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 3, Backoff: time.Millisecond, PerRequestTimeout: 2 * time.Second}
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrUnsupportedContentType) {
		t.Fatalf("expected ErrUnsupportedContentType, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("content-type rejection must not be retried, got %d calls", got)
	}
}

func TestFetch_AcceptsFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title></channel></rss>`))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second}
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected rss to be accepted, got %v", err)
	}
}

func TestFetch_DecodesLegacyCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in Latin-1
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second}
	page, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(page.Body) != "café" {
		t.Fatalf("expected utf-8 transcoding, got %q", string(page.Body))
	}
}

func TestFetch_RedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, RedirectMaxHops: 1}
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected redirect limit error")
	}
}

func TestFetch_FinalURLAfterRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/story", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second}
	page, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.FinalURL != srv.URL+"/story" {
		t.Fatalf("FinalURL=%q", page.FinalURL)
	}
}

func TestFetch_MaxConcurrent(t *testing.T) {
	var inFlight int32
	var maxObserved int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		curr := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxObserved)
			if curr <= prev || atomic.CompareAndSwapInt32(&maxObserved, prev, curr) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
		atomic.AddInt32(&inFlight, -1)
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, MaxConcurrent: 2}

	var wg sync.WaitGroup
	start := make(chan struct{})
	num := 6
	wg.Add(num)
	for i := 0; i < num; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, _ = c.Fetch(context.Background(), srv.URL)
		}()
	}
	close(start)
	wg.Wait()

	if maxObserved > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", maxObserved)
	}
}
