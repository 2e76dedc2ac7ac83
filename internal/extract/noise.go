package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelectors are removed outright before any text is read.
var noiseSelectors = []string{
	"script", "style", "noscript", "template", "iframe", "svg", "canvas",
	"form", "button", "select", "input", "textarea",
	"nav", "header", "footer", "aside", "figcaption",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]", "[role=complementary]",
	"[role=dialog]", "[aria-hidden=true]", "[hidden]",
	"[itemprop=author]", "[rel=author]", "address",
}

// noiseTokens match whole dash- or underscore-separated parts of class and
// id values, so "related-posts" matches but "unrelated" does not.
var noiseTokens = map[string]struct{}{
	"ad": {}, "ads": {}, "adv": {}, "advert": {}, "advertisement": {}, "adslot": {},
	"sponsor": {}, "sponsored": {}, "promo": {}, "promoted": {}, "banner": {},
	"comment": {}, "comments": {}, "disqus": {},
	"share": {}, "sharing": {}, "social": {}, "sharebar": {},
	"related": {}, "recommended": {}, "recirc": {}, "outbrain": {}, "taboola": {},
	"cookie": {}, "cookies": {}, "consent": {}, "gdpr": {},
	"newsletter": {}, "subscribe": {}, "subscription": {}, "paywall": {},
	"byline": {}, "author": {}, "bio": {},
	"breadcrumb": {}, "breadcrumbs": {}, "sidebar": {}, "widget": {},
	"popup": {}, "modal": {}, "toolbar": {}, "menu": {},
}

// Prefixes that describe a modifier rather than the element itself.
var noiseExemptPrefixes = []string{"has-", "with-", "no-", "is-"}

// protectedTags are never removed by the class/id token rule.
var protectedTags = map[string]struct{}{
	"html": {}, "body": {}, "main": {}, "article": {},
}

// removeNoise deletes boilerplate elements and HTML comments in place.
// Layout wrappers such as "content-sidebar-wrap" carry noise tokens too, so
// an element that still holds a content container is kept.
func removeNoise(doc *goquery.Document) {
	doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	holdsContent := strings.Join(contentSelectors, ", ")
	doc.Find("[class], [id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if _, ok := protectedTags[goquery.NodeName(s)]; ok {
			return false
		}
		cls, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if !hasNoiseToken(cls) && !hasNoiseToken(id) {
			return false
		}
		return s.Find(holdsContent).Length() == 0
	}).Remove()
	for _, n := range doc.Nodes {
		removeComments(n)
	}
}

func hasNoiseToken(attr string) bool {
	for _, value := range strings.Fields(strings.ToLower(attr)) {
		if exemptValue(value) {
			continue
		}
		parts := strings.FieldsFunc(value, func(r rune) bool { return r == '-' || r == '_' })
		for _, p := range parts {
			if _, ok := noiseTokens[p]; ok {
				return true
			}
		}
	}
	return false
}

func exemptValue(v string) bool {
	for _, p := range noiseExemptPrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}
