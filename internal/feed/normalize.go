package feed

import (
	"net/url"
	"strings"
)

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id",
	"gclid", "fbclid", "mc_cid", "mc_eid", "_hsenc", "_hsmi",
}

// CanonicalURL drops the fragment and tracking parameters and lowercases
// the host so the same article linked from two feeds is processed once.
// Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.RawQuery != "" {
		q := u.Query()
		for _, p := range trackingParams {
			q.Del(p)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
