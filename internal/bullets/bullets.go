// Package bullets reshapes free-form model output into a short list of
// validated summary bullets.
package bullets

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Bullet is one summary point, stored without its marker.
type Bullet string

// Summary is an ordered list of bullets.
type Summary []Bullet

// String renders one "• " prefixed line per bullet.
func (s Summary) String() string {
	lines := make([]string, len(s))
	for i, b := range s {
		lines[i] = "• " + string(b)
	}
	return strings.Join(lines, "\n")
}

// Strings returns the bullets as plain strings.
func (s Summary) Strings() []string {
	out := make([]string, len(s))
	for i, b := range s {
		out[i] = string(b)
	}
	return out
}

// Options bound what counts as a valid bullet.
type Options struct {
	MinWords         int `yaml:"minWords" json:"minWords"`
	MaxWords         int `yaml:"maxWords" json:"maxWords"`
	MinUnmarkedChars int `yaml:"minUnmarkedChars" json:"minUnmarkedChars"`
	MaxBullets       int `yaml:"maxBullets" json:"maxBullets"`
}

func DefaultOptions() Options {
	return Options{MinWords: 3, MaxWords: 40, MinUnmarkedChars: 40, MaxBullets: 4}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinWords <= 0 {
		o.MinWords = d.MinWords
	}
	if o.MaxWords <= 0 {
		o.MaxWords = d.MaxWords
	}
	if o.MinUnmarkedChars <= 0 {
		o.MinUnmarkedChars = d.MinUnmarkedChars
	}
	if o.MaxBullets <= 0 {
		o.MaxBullets = d.MaxBullets
	}
	return o
}

var preambles = []string{
	"here are the key points:",
	"here are the key business points:",
	"here are the main points:",
	"here is the summary:",
	"here is a summary:",
	"here's the summary:",
	"here's a summary:",
	"executive summary:",
	"business summary:",
	"key takeaways:",
	"key points:",
	"summary:",
	"tl;dr:",
	"sure!",
	"sure,",
	"certainly!",
}

// Catches variants such as "Here are 3 key points about the deal:".
var preambleRe = regexp.MustCompile(`(?i)^here(?:'s|’s| is| are)\b[^\n:]{0,80}:`)

// Dash and asterisk markers need trailing whitespace so signed figures such
// as "-5%" keep their sign.
var markerRe = regexp.MustCompile(`^(?:[•·▪►◦‣]+\s*|[-*–—]+\s+|\d{1,2}[.)](?:\s+|$)|\(\d{1,2}\)\s+)`)

// callsToAction are openers that mark promotional rather than factual lines.
var callsToAction = []string{
	"click here", "read more", "read the full", "subscribe", "sign up",
	"follow us", "learn more", "find out more", "visit ", "share this",
}

// StripPreamble removes leading filler phrases, repeatedly.
func StripPreamble(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		before := s
		for _, p := range preambles {
			if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
				s = strings.TrimSpace(s[len(p):])
			}
		}
		if loc := preambleRe.FindStringIndex(s); loc != nil {
			s = strings.TrimSpace(s[loc[1]:])
		}
		if s == before {
			return s
		}
	}
}

// stripMarker returns the line without its bullet or numbering marker and
// whether one was present.
func stripMarker(line string) (string, bool) {
	loc := markerRe.FindStringIndex(line)
	if loc == nil {
		return line, false
	}
	return strings.TrimSpace(line[loc[1]:]), true
}

// Format turns raw model text into at most MaxBullets valid bullets. An
// empty Summary is a valid result.
func Format(raw string, opts Options) Summary {
	opts = opts.withDefaults()
	text := StripPreamble(raw)

	var candidates Summary
	var stripped []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
		if line == "" {
			continue
		}
		body, marked := stripMarker(line)
		if body == "" {
			continue
		}
		stripped = append(stripped, body)
		switch {
		case marked && Valid(body, opts):
			candidates = append(candidates, Bullet(body))
		case !marked && utf8.RuneCountInString(body) >= opts.MinUnmarkedChars &&
			len(candidates) < opts.MaxBullets && Valid(body, opts):
			candidates = append(candidates, Bullet(body))
		}
	}

	if len(candidates) < 2 {
		var sentences Summary
		for _, s := range Sentences(strings.Join(stripped, " ")) {
			if len(sentences) == opts.MaxBullets {
				break
			}
			if Valid(s, opts) {
				sentences = append(sentences, Bullet(s))
			}
		}
		if len(sentences) > len(candidates) {
			candidates = sentences
		}
	}

	out := make(Summary, 0, opts.MaxBullets)
	for _, b := range candidates {
		if len(out) == opts.MaxBullets {
			break
		}
		if Valid(string(b), opts) {
			out = append(out, b)
		}
	}
	return out
}

// Valid reports whether a marker-free bullet satisfies the word-count,
// punctuation and call-to-action rules.
func Valid(bullet string, opts Options) bool {
	opts = opts.withDefaults()
	b := strings.TrimSpace(bullet)
	if b == "" {
		return false
	}
	words := len(strings.Fields(b))
	if words < opts.MinWords || words > opts.MaxWords {
		return false
	}
	end := strings.TrimRightFunc(b, isCloser)
	if end == "" || strings.HasSuffix(end, "..") || strings.HasSuffix(end, "…") || strings.HasSuffix(end, ",") {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(end)
	if last != '.' && last != '!' && last != '?' {
		return false
	}
	lower := strings.ToLower(b)
	for _, cta := range callsToAction {
		if strings.HasPrefix(lower, cta) {
			return false
		}
	}
	return true
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '»':
		return true
	}
	return false
}

// Sentences splits text at '.', '!' or '?' (plus any closing quotes) that
// are followed by whitespace or the end of input. Fragments are trimmed and
// whitespace-collapsed; empty ones are dropped.
func Sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && (isCloser(runes[j]) || runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			continue
		}
		if s := strings.Join(strings.Fields(string(runes[start:j])), " "); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		if s := strings.Join(strings.Fields(string(runes[start:])), " "); s != "" {
			out = append(out, s)
		}
	}
	return out
}
