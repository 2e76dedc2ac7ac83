package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/newsbrief/internal/bullets"
	"github.com/hyperifyio/newsbrief/internal/feed"
	"github.com/hyperifyio/newsbrief/internal/pipeline"
)

func sampleReport() Report {
	pub := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	return Report{
		RunID:      "3f1c2a7e-0000-4000-8000-000000000001",
		StartedAt:  pub,
		FinishedAt: pub.Add(time.Minute),
		Stats:      pipeline.Stats{Total: 3, Processed: 2, Skipped: 1, Persisted: 1, PersistFailed: 1, ByProvider: map[string]int{"groq": 1, "title": 1}},
		Articles: []pipeline.Article{
			{
				Item:         feed.Item{Title: "HealthCo Raises $50M Series C", URL: "https://example.org/healthco", Source: "Health Wire", Published: pub, Category: "Health"},
				Summary:      bullets.Summary{"HealthCo raised $50 million in a Series C round.", "The money funds “remote” care <pilots>."},
				SummarizedBy: "groq",
				Persisted:    true,
			},
			{
				Item:         feed.Item{Title: "Acme launches analytics", URL: "https://example.com/acme", Source: "Tech Daily", Category: "Tech"},
				Summary:      bullets.Summary{"Content unavailable for a detailed summary."},
				SummarizedBy: "title",
			},
		},
	}
}

func TestWriteReadJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "backup.json")
	r := sampleReport()
	require.NoError(t, WriteJSON(path, r))
	got, err := ReadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, got.RunID)
	assert.Equal(t, r.Stats, got.Stats)
	require.Len(t, got.Articles, 2)
	assert.Equal(t, r.Articles[0].Summary, got.Articles[0].Summary)
	assert.Equal(t, "Health", got.Articles[0].Category)
}

func TestWritePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.pdf")
	require.NoError(t, WritePDF(path, sampleReport()))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
}

func TestAtom(t *testing.T) {
	out, err := Atom(sampleReport(), FeedMeta{Title: "Digest", Link: "https://example.net/", Author: "newsbrief"})
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Digest</title>")
	assert.Contains(t, out, "https://example.org/healthco")
	assert.NotContains(t, out, "<pilots>")

	path := filepath.Join(t.TempDir(), "feed.atom")
	require.NoError(t, WriteAtom(path, sampleReport(), FeedMeta{}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "newsbrief digest")
}

func TestLogSummary(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	LogSummary(sampleReport())
	out := buf.String()
	assert.Contains(t, out, "added 1/2 articles")
	assert.Contains(t, out, `"by_groq":1`)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestByCategory(t *testing.T) {
	cats, groups := byCategory(sampleReport().Articles)
	assert.Equal(t, []string{"Health", "Tech"}, cats)
	assert.Len(t, groups["Tech"], 1)
}
