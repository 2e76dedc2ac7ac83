// Package report writes the outcome of a batch run: a console summary, a
// JSON backup, and optional PDF and Atom digests.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/newsbrief/internal/pipeline"
)

// Report is everything one run produced.
type Report struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Stats      pipeline.Stats     `json:"stats"`
	Articles   []pipeline.Article `json:"articles"`
}

// LogSummary prints the per-run totals and one line per article.
func LogSummary(r Report) {
	for _, a := range r.Articles {
		log.Info().
			Str("category", a.Category).
			Str("provider", a.SummarizedBy).
			Bool("persisted", a.Persisted).
			Str("url", a.URL).
			Msg(a.Title)
	}
	providers := make([]string, 0, len(r.Stats.ByProvider))
	for p := range r.Stats.ByProvider {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	ev := log.Info().
		Str("run", r.RunID).
		Int("total", r.Stats.Total).
		Int("processed", r.Stats.Processed).
		Int("skipped", r.Stats.Skipped).
		Int("persist_failed", r.Stats.PersistFailed).
		Dur("elapsed", r.FinishedAt.Sub(r.StartedAt))
	for _, p := range providers {
		ev = ev.Int("by_"+p, r.Stats.ByProvider[p])
	}
	ev.Msgf("added %d/%d articles", r.Stats.Persisted, r.Stats.Processed)
}

// WriteJSON stores the full report, creating parent directories.
func WriteJSON(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(path string) (Report, error) {
	var r Report
	b, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// byCategory groups articles by category, categories sorted, input order
// kept within each.
func byCategory(articles []pipeline.Article) ([]string, map[string][]pipeline.Article) {
	groups := make(map[string][]pipeline.Article)
	for _, a := range articles {
		groups[a.Category] = append(groups[a.Category], a)
	}
	cats := make([]string, 0, len(groups))
	for c := range groups {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats, groups
}
