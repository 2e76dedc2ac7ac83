// Package summarize runs the ordered provider cascade that turns clean
// article text into a validated bullet summary, falling back to the
// deterministic heuristic summarizer when every provider fails.
package summarize

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/newsbrief/internal/bullets"
	"github.com/hyperifyio/newsbrief/internal/fallback"
	"github.com/hyperifyio/newsbrief/internal/retry"
)

// Options tune the cascade gates. Zero ints and a zero Timeout take the
// defaults; a zero RetryDelay retries immediately.
type Options struct {
	// MinInputChars keeps providers from being called on near-empty text.
	MinInputChars int `yaml:"minInputChars" json:"minInputChars"`
	// MinSummaryChars is the shortest rendered summary accepted.
	MinSummaryChars int           `yaml:"minSummaryChars" json:"minSummaryChars"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	RetryDelay      time.Duration `yaml:"retryDelay" json:"retryDelay"`
	Style           string        `yaml:"style" json:"style"`

	Bullets  bullets.Options  `yaml:"-" json:"-"`
	Fallback fallback.Options `yaml:"-" json:"-"`
}

func DefaultOptions() Options {
	return Options{
		MinInputChars:   200,
		MinSummaryChars: 30,
		Timeout:         30 * time.Second,
		RetryDelay:      2 * time.Second,
		Style:           StyleProductManager,
		Bullets:         bullets.DefaultOptions(),
		Fallback:        fallback.DefaultOptions(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinInputChars <= 0 {
		o.MinInputChars = d.MinInputChars
	}
	if o.MinSummaryChars <= 0 {
		o.MinSummaryChars = d.MinSummaryChars
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// Result is the accepted summary and who produced it: a provider name,
// "heuristic" or "title".
type Result struct {
	Summary  bullets.Summary
	Provider string
}

// Cascade tries Providers in order and stops at the first acceptable summary.
type Cascade struct {
	Providers []Provider
	Options   Options
}

// Summarize never fails: provider errors and rejected output move on to the
// next provider, and exhaustion ends in the fallback summarizer.
func (c *Cascade) Summarize(ctx context.Context, cleanText, title string) Result {
	opts := c.Options.withDefaults()
	text := strings.TrimSpace(cleanText)
	req := Request{System: SystemPrompt(opts.Style), Content: text, Title: title}

	for _, p := range c.Providers {
		name := p.Name()
		if !p.Configured() {
			log.Debug().Str("provider", name).Msg("provider skipped: no credential")
			continue
		}
		if utf8.RuneCountInString(text) < opts.MinInputChars {
			log.Debug().Str("provider", name).Int("chars", utf8.RuneCountInString(text)).Msg("provider skipped: input too short")
			continue
		}
		raw, err := attempt(ctx, p, req, opts)
		if err != nil {
			ev := log.Warn().Err(err).Str("provider", name)
			var se *StatusError
			if errors.As(err, &se) {
				ev = ev.Int("status", se.Code)
			}
			ev.Msg("provider failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		summary := bullets.Format(raw, opts.Bullets)
		if len(summary) == 0 || utf8.RuneCountInString(summary.String()) < opts.MinSummaryChars {
			log.Debug().Str("provider", name).Int("bullets", len(summary)).Msg("provider output rejected")
			continue
		}
		log.Debug().Str("provider", name).Int("bullets", len(summary)).Msg("summary accepted")
		return Result{Summary: summary, Provider: name}
	}

	summary, source := fallback.SummarizeSource(text, title, opts.Fallback)
	log.Debug().Str("provider", source).Int("bullets", len(summary)).Msg("fallback summary")
	return Result{Summary: summary, Provider: source}
}

// attempt calls p with one retry after RetryDelay, each call bounded by
// Timeout.
func attempt(ctx context.Context, p Provider, req Request, opts Options) (string, error) {
	var raw string
	err := retry.Do(ctx, retry.Fixed(1, opts.RetryDelay), "summarize "+p.Name(), func() error {
		actx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		out, err := p.Attempt(actx, req)
		if err != nil {
			return err
		}
		raw = out
		return nil
	}, func(err error) bool {
		return !errors.Is(err, ErrNotConfigured) && !errors.Is(err, context.Canceled)
	})
	return raw, err
}
