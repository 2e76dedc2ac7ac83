// Package robots answers whether an article URL may be fetched according to
// its host's robots.txt, caching parsed files per host.
package robots

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"

	"github.com/hyperifyio/newsbrief/internal/cache"
)

// Source tells where a robots.txt decision came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceMemory
	SourceCache304
)

// DefaultAgent is the product token matched against robots.txt groups.
const DefaultAgent = "newsbrief"

// Manager fetches and memoizes robots.txt per scheme and host.
type Manager struct {
	HTTPClient *http.Client
	// Cache, when set, enables conditional revalidation of robots.txt.
	Cache *cache.HTTPCache
	// Agent is matched against User-agent lines; empty uses DefaultAgent.
	Agent       string
	EntryExpiry time.Duration
	// AllowPrivateHosts permits loopback and private addresses, for tests.
	AllowPrivateHosts bool

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	data   *robotstxt.RobotsData
	expiry time.Time
}

// Decision is the verdict for one URL.
type Decision struct {
	Allowed    bool
	CrawlDelay time.Duration
	Source     Source
}

// RobotsURL returns the robots.txt location for pageURL.
func RobotsURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) || u.Host == "" {
		return "", fmt.Errorf("unsupported url: %q", pageURL)
	}
	return fmt.Sprintf("%s://%s/robots.txt", strings.ToLower(u.Scheme), u.Host), nil
}

// Check evaluates pageURL against its host's robots.txt.
func (m *Manager) Check(ctx context.Context, pageURL string) (Decision, error) {
	robotsURL, err := RobotsURL(pageURL)
	if err != nil {
		return Decision{}, err
	}
	data, src, err := m.Get(ctx, robotsURL)
	if err != nil {
		return Decision{}, err
	}
	u, _ := url.Parse(pageURL)
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	d := Decision{Allowed: data.TestAgent(path, m.agent()), Source: src}
	if group := data.FindGroup(m.agent()); group != nil {
		d.CrawlDelay = group.CrawlDelay
	}
	return d, nil
}

func (m *Manager) agent() string {
	if strings.TrimSpace(m.Agent) == "" {
		return DefaultAgent
	}
	return m.Agent
}

// Get returns the parsed robots.txt at robotsURL, from memory when fresh.
func (m *Manager) Get(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, Source, error) {
	m.mu.Lock()
	if m.now == nil {
		m.now = time.Now
	}
	if m.mem == nil {
		m.mem = make(map[string]memEntry)
	}
	if ent, ok := m.mem[robotsURL]; ok && m.now().Before(ent.expiry) {
		m.mu.Unlock()
		return ent.data, SourceMemory, nil
	}
	m.mu.Unlock()

	u, err := url.Parse(robotsURL)
	if err != nil {
		return nil, SourceNetwork, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return nil, SourceNetwork, fmt.Errorf("unsupported url scheme: %q", robotsURL)
	}
	if host := u.Hostname(); !m.AllowPrivateHosts && isLocalOrPrivateHost(host) {
		return nil, SourceNetwork, fmt.Errorf("private host not allowed: %s", host)
	}

	var etag, lastMod string
	if m.Cache != nil {
		if meta, err := m.Cache.LoadMeta(ctx, robotsURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, SourceNetwork, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", m.agent())
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, SourceNetwork, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && m.Cache != nil {
		body, err := m.Cache.LoadBody(ctx, robotsURL)
		if err != nil {
			return nil, SourceCache304, fmt.Errorf("load cached robots: %w", err)
		}
		data, err := robotstxt.FromBytes(body)
		if err != nil {
			return nil, SourceCache304, fmt.Errorf("parse cached robots: %w", err)
		}
		m.storeMem(robotsURL, data)
		return data, SourceCache304, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, SourceNetwork, fmt.Errorf("read robots: %w", err)
	}
	// 4xx means allow all and 5xx means disallow all, per robotstxt
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, SourceNetwork, fmt.Errorf("parse robots: %w", err)
	}
	if m.Cache != nil && resp.StatusCode == http.StatusOK {
		_ = m.Cache.Save(ctx, robotsURL, "text/plain", resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), body)
	}
	m.storeMem(robotsURL, data)
	log.Debug().Str("url", robotsURL).Int("status", resp.StatusCode).Msg("robots.txt loaded")
	return data, SourceNetwork, nil
}

func (m *Manager) storeMem(key string, data *robotstxt.RobotsData) {
	exp := m.EntryExpiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	m.mu.Lock()
	m.mem[key] = memEntry{data: data, expiry: m.now().Add(exp)}
	m.mu.Unlock()
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isLocalOrPrivateHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" || h == "localhost.localdomain" || h == "::1" || h == "[::1]" {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return true
		}
	}
	return false
}
