// Package fallback builds a deterministic summary from cleaned article text
// when no provider produced one, and a title-derived floor when even that
// fails.
package fallback

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperifyio/newsbrief/internal/bullets"
)

// Unavailable is the floor bullet used when nothing else can be derived.
const Unavailable = "Content unavailable for a detailed summary."

type Options struct {
	// MinSourceChars is the text length below which only the title is used.
	MinSourceChars int `yaml:"minSourceChars" json:"minSourceChars"`
	// MinSentenceChars is the shortest sentence eligible as a bullet.
	MinSentenceChars int `yaml:"minSentenceChars" json:"minSentenceChars"`
	// MaxSentences caps the sentence-based summary.
	MaxSentences int `yaml:"maxSentences" json:"maxSentences"`
	// Bullets validates each selected sentence.
	Bullets bullets.Options `yaml:"-" json:"-"`
}

func DefaultOptions() Options {
	return Options{MinSourceChars: 40, MinSentenceChars: 40, MaxSentences: 3, Bullets: bullets.DefaultOptions()}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinSourceChars <= 0 {
		o.MinSourceChars = d.MinSourceChars
	}
	if o.MinSentenceChars <= 0 {
		o.MinSentenceChars = d.MinSentenceChars
	}
	if o.MaxSentences <= 0 {
		o.MaxSentences = d.MaxSentences
	}
	return o
}

type scored struct {
	text  string
	score int
}

// Sources reported by SummarizeSource.
const (
	SourceHeuristic = "heuristic"
	SourceTitle     = "title"
)

// Summarize returns the highest scoring sentences of cleanText, or the first
// qualifying ones when nothing scores. It never returns an empty Summary.
func Summarize(cleanText, title string, opts Options) bullets.Summary {
	s, _ := SummarizeSource(cleanText, title, opts)
	return s
}

// SummarizeSource is Summarize that also reports whether the sentences came
// from the text (SourceHeuristic) or only from the title (SourceTitle).
func SummarizeSource(cleanText, title string, opts Options) (bullets.Summary, string) {
	opts = opts.withDefaults()
	text := strings.TrimSpace(cleanText)
	if utf8.RuneCountInString(text) < opts.MinSourceChars {
		return TitleSummary(title, opts.Bullets), SourceTitle
	}

	var candidates []scored
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		for _, s := range bullets.Sentences(line) {
			if utf8.RuneCountInString(s) < opts.MinSentenceChars || !bullets.Valid(s, opts.Bullets) {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			candidates = append(candidates, scored{text: s, score: Score(s)})
		}
	}
	if len(candidates) == 0 {
		return TitleSummary(title, opts.Bullets), SourceTitle
	}

	ranked := make([]scored, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var out bullets.Summary
	for _, c := range ranked {
		if len(out) == opts.MaxSentences || c.score <= 0 {
			break
		}
		out = append(out, bullets.Bullet(c.text))
	}
	if len(out) > 0 {
		return out, SourceHeuristic
	}
	for _, c := range candidates {
		if len(out) == opts.MaxSentences {
			break
		}
		out = append(out, bullets.Bullet(c.text))
	}
	return out, SourceHeuristic
}

var (
	figureRe = regexp.MustCompile(`[$€£¥]\s?\d[\d,.]*\s?(?:[KMBkmb]n?\b|million\b|billion\b|trillion\b)?|\d+(?:\.\d+)?\s?%`)
	tokenRe  = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}&'’.-]*`)
)

// actionVerbs are reported when they occur as words in a title.
var actionVerbs = []string{
	"raises", "raised", "secures", "secured", "closes", "closed",
	"acquires", "acquired", "buys", "bought", "merges", "merged",
	"launches", "launched", "unveils", "unveiled", "introduces", "introduced",
	"announces", "announced", "partners", "partnered", "expands", "expanded",
	"approves", "approved", "receives", "received", "wins", "won",
	"signs", "signed", "files", "filed", "cuts", "lays",
}

// stopwords are capitalized title words that never start an entity phrase.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "with": {}, "by": {}, "from": {}, "as": {},
	"its": {}, "new": {}, "how": {}, "why": {}, "what": {}, "after": {}, "over": {},
	"into": {}, "is": {}, "are": {}, "this": {}, "that": {}, "it": {},
}

// TitleSummary derives bullets from the headline alone: the headline itself,
// capitalized phrases, money and percentage figures and known action verbs.
// When nothing can be derived it returns the Unavailable bullet.
func TitleSummary(title string, opts bullets.Options) bullets.Summary {
	title = strings.Join(strings.Fields(title), " ")
	var out bullets.Summary
	add := func(b string) {
		if len(out) < 4 && bullets.Valid(b, opts) {
			out = append(out, bullets.Bullet(b))
		}
	}
	if title == "" {
		return bullets.Summary{Unavailable}
	}

	add(terminate(title))
	derived := len(out)
	if ents := entities(title); len(ents) > 0 {
		add("Key entities: " + strings.Join(ents, ", ") + ".")
	}
	if figs := figureRe.FindAllString(title, 3); len(figs) > 0 {
		add("Key figures: " + strings.Join(trimAll(figs), ", ") + ".")
	}
	if acts := actions(title); len(acts) > 0 {
		add("Reported actions: " + strings.Join(acts, ", ") + ".")
	}
	if len(out) == derived {
		out = append(out, Unavailable)
	}
	return out
}

func terminate(s string) string {
	s = strings.TrimRight(s, " ,;:-–—")
	if s == "" {
		return s
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	if last == '.' || last == '!' || last == '?' {
		return s
	}
	return s + "."
}

// entities groups runs of capitalized words, skipping stopwords, action
// verbs and figures. At most three phrases are returned.
func entities(title string) []string {
	var phrases, run []string
	flush := func() {
		if len(run) > 0 {
			phrases = append(phrases, strings.Join(run, " "))
			run = nil
		}
	}
	for _, tok := range tokenRe.FindAllString(title, -1) {
		tok = strings.TrimRight(tok, ".’'")
		first, _ := utf8.DecodeRuneInString(tok)
		lower := strings.ToLower(tok)
		_, stop := stopwords[lower]
		if tok == "" || !unicode.IsUpper(first) || stop || isAction(lower) {
			flush()
			continue
		}
		run = append(run, tok)
	}
	flush()
	if len(phrases) > 3 {
		phrases = phrases[:3]
	}
	return phrases
}

func actions(title string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range tokenRe.FindAllString(title, -1) {
		lower := strings.ToLower(strings.TrimRight(tok, ".’'"))
		if isAction(lower) && !seen[lower] {
			seen[lower] = true
			out = append(out, lower)
		}
	}
	return out
}

func isAction(word string) bool {
	for _, v := range actionVerbs {
		if v == word {
			return true
		}
	}
	return false
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimRight(strings.TrimSpace(s), ".,")
	}
	return out
}
