// Package clean normalizes extracted article text into CleanText: meaningful,
// unique lines bounded to a total character budget.
package clean

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Options are the line-filter thresholds. Zero fields take the defaults.
type Options struct {
	// A line is dropped when it is shorter than MinLineChars and also has
	// fewer than MinLineWords words.
	MinLineChars int `yaml:"minLineChars" json:"minLineChars"`
	MinLineWords int `yaml:"minLineWords" json:"minLineWords"`
	// MaxChars is the hard cap on the joined output, in runes.
	MaxChars int `yaml:"maxChars" json:"maxChars"`
	// MaxDelimiters is the number of '|' tolerated before a line is treated
	// as a rendered navigation menu.
	MaxDelimiters int `yaml:"maxDelimiters" json:"maxDelimiters"`
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{MinLineChars: 20, MinLineWords: 4, MaxChars: 12000, MaxDelimiters: 3}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinLineChars <= 0 {
		o.MinLineChars = d.MinLineChars
	}
	if o.MinLineWords <= 0 {
		o.MinLineWords = d.MinLineWords
	}
	if o.MaxChars <= 0 {
		o.MaxChars = d.MaxChars
	}
	if o.MaxDelimiters <= 0 {
		o.MaxDelimiters = d.MaxDelimiters
	}
	return o
}

// Cleaner applies Options to raw text.
type Cleaner struct {
	opts Options
}

// New returns a Cleaner; zero-valued options fall back to DefaultOptions.
func New(opts Options) *Cleaner {
	return &Cleaner{opts: opts.withDefaults()}
}

// Clean filters text line by line, removes duplicates and truncates. The
// result is a fixed point: Clean(Clean(x)) == Clean(x).
func (c *Cleaner) Clean(text string) string {
	lines := c.filter(strings.Split(text, "\n"))
	out := strings.Join(lines, "\n")
	if cut, truncated := truncateRunes(out, c.opts.MaxChars); truncated {
		// the cut can leave a short or duplicate tail; filter again so a
		// second pass has nothing left to remove
		out = strings.Join(c.filter(strings.Split(cut, "\n")), "\n")
	}
	return out
}

func (c *Cleaner) filter(lines []string) []string {
	out := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, raw := range lines {
		line := normalizeLine(raw)
		if line == "" || c.drop(line) {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

func (c *Cleaner) drop(line string) bool {
	if len([]rune(line)) < c.opts.MinLineChars && len(strings.Fields(line)) < c.opts.MinLineWords {
		return true
	}
	if !hasLetter(line) {
		return true
	}
	if strings.Count(line, "|") > c.opts.MaxDelimiters {
		return true
	}
	return IsBoilerplate(line)
}

var (
	copyrightRe = regexp.MustCompile(`(?i)©|\(c\)\s*\d{4}|\bcopyright\b|all rights reserved`)
	// keyword markers only count on short lines so that real paragraphs
	// mentioning a newsletter or a share price survive
	keywordRe = regexp.MustCompile(`(?i)\b(share (this|on|via)|follow us|like us on|sign up (for|to)|subscribe( now| to| for)?|newsletter|log ?in|sign in|create an account|skip to (main )?content|back to top|read more|continue reading|related (articles|stories|posts)|recommended for you|advertisement|sponsored content|cookie (policy|settings)|privacy policy|terms of (use|service)|all comments|leave a comment|click here)\b`)
	leadingShareRe = regexp.MustCompile(`(?i)^(share|tweet|pin it|email|print|facebook|twitter|linkedin|whatsapp|reddit)\b`)
	dateStampRe    = regexp.MustCompile(`(?i)^(updated|published|posted|last updated)?:?\s*(on\s+)?(mon|tue|wed|thu|fri|sat|sun)?[a-z]*,?\s*(jan(uary)?|feb(ruary)?|mar(ch)?|apr(il)?|may|june?|july?|aug(ust)?|sep(t|tember)?|oct(ober)?|nov(ember)?|dec(ember)?)\.?\s+\d{1,2}(st|nd|rd|th)?,?\s+\d{4}\b`)
	counterRe      = regexp.MustCompile(`(?i)^\d[\d,.]*\s*[km]?\s*(comments?|shares?|likes?|views?|reads?|replies|reactions?)$`)
	digitsRe       = regexp.MustCompile(`^[\d\s.,:;/\-–—]+$`)
)

// IsBoilerplate reports whether a single normalized line looks like page
// chrome rather than article prose.
func IsBoilerplate(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	n := len([]rune(line))
	switch {
	case digitsRe.MatchString(line):
		return true
	case counterRe.MatchString(line):
		return true
	case copyrightRe.MatchString(line) && n < 200:
		return true
	case dateStampRe.MatchString(line) && n < 80:
		return true
	case keywordRe.MatchString(line) && n < 150:
		return true
	case leadingShareRe.MatchString(line) && n < 40:
		return true
	}
	return false
}

// normalizeLine applies NFKC and collapses whitespace runs.
func normalizeLine(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		// byte length bounds rune length
		return s, false
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i], true
		}
		count++
	}
	return s, false
}
