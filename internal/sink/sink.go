// Package sink persists summarized articles to external stores.
package sink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFieldChars caps Title and Summary before they are sent anywhere.
const MaxFieldChars = 2000

var ErrInvalidRecord = errors.New("invalid record")

// Record is the persisted form of one summarized article.
type Record struct {
	Title     string    `json:"title" bson:"title"`
	URL       string    `json:"url" bson:"url"`
	Source    string    `json:"source" bson:"source"`
	Published time.Time `json:"published" bson:"published"`
	Summary   string    `json:"summary" bson:"summary"`
	Category  string    `json:"category" bson:"category"`
}

// Sink stores one record. Implementations must be safe for sequential reuse.
type Sink interface {
	Name() string
	Save(ctx context.Context, r Record) error
}

// Normalize trims fields, caps Title and Summary and checks the URL.
func Normalize(r Record) (Record, error) {
	r.Title = capRunes(strings.TrimSpace(r.Title), MaxFieldChars)
	r.Summary = capRunes(strings.TrimSpace(r.Summary), MaxFieldChars)
	r.Source = strings.TrimSpace(r.Source)
	r.Category = strings.TrimSpace(r.Category)
	r.URL = strings.TrimSpace(r.URL)
	if r.Title == "" {
		return r, fmt.Errorf("%w: empty title", ErrInvalidRecord)
	}
	u, err := url.Parse(r.URL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return r, fmt.Errorf("%w: url %q", ErrInvalidRecord, r.URL)
	}
	return r, nil
}

func capRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// PartialError reports a Multi save that reached some sinks but not all.
// The record exists downstream, so callers treat it as persisted.
type PartialError struct {
	Saved []string
	Err   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("saved to %s only: %v", strings.Join(e.Saved, "+"), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Multi saves to every sink and joins their errors. When at least one sink
// succeeds the error is a *PartialError.
type Multi []Sink

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m Multi) Save(ctx context.Context, r Record) error {
	var errs []error
	var saved []string
	for _, s := range m {
		if err := s.Save(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		saved = append(saved, s.Name())
	}
	err := errors.Join(errs...)
	if err != nil && len(saved) > 0 {
		return &PartialError{Saved: saved, Err: err}
	}
	return err
}
