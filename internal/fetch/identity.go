package fetch

import "net/http"

// Identity is one set of browser-like request headers.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
}

// DefaultIdentities is the header pool rotated across requests.
var DefaultIdentities = []Identity{
	{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", AcceptLanguage: "en-US,en;q=0.9"},
	{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15", AcceptLanguage: "en-US,en;q=0.8"},
	{UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0", AcceptLanguage: "en-GB,en;q=0.9"},
	{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.2420.81", AcceptLanguage: "en-US,en;q=0.7"},
	{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", AcceptLanguage: "en,en-US;q=0.9"},
}

func (id Identity) apply(req *http.Request) {
	if id.UserAgent != "" {
		req.Header.Set("User-Agent", id.UserAgent)
	}
	if id.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", id.AcceptLanguage)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}
