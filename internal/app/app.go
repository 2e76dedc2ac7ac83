package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/newsbrief/internal/cache"
	"github.com/hyperifyio/newsbrief/internal/clean"
	"github.com/hyperifyio/newsbrief/internal/extract"
	"github.com/hyperifyio/newsbrief/internal/feed"
	"github.com/hyperifyio/newsbrief/internal/fetch"
	"github.com/hyperifyio/newsbrief/internal/pipeline"
	"github.com/hyperifyio/newsbrief/internal/report"
	"github.com/hyperifyio/newsbrief/internal/robots"
	"github.com/hyperifyio/newsbrief/internal/sink"
	"github.com/hyperifyio/newsbrief/internal/store"
	"github.com/hyperifyio/newsbrief/internal/summarize"
)

// ErrNoSources is returned when polling yields no new feed items. The CLI
// maps it to a non-zero exit.
var ErrNoSources = errors.New("no new feed items")

type App struct {
	cfg    Config
	poller *feed.Poller
	pipe   *pipeline.Pipeline
	seen   *store.Seen
	mongo  *sink.Mongo
}

// New validates cfg and wires the batch. Missing credentials only disable
// the provider or sink that needs them; an unreachable MongoDB is logged
// and skipped.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	var httpCache *cache.HTTPCache
	var summaryCache *cache.SummaryCache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		httpDir := filepath.Join(cfg.CacheDir, "http")
		summaryDir := filepath.Join(cfg.CacheDir, "summaries")
		if cfg.CacheMaxAge > 0 {
			nh, _ := cache.PurgeHTTPCacheByAge(httpDir, cfg.CacheMaxAge)
			ns, _ := cache.PurgeSummaryCacheByAge(summaryDir, cfg.CacheMaxAge)
			log.Debug().Int("http", nh).Int("summaries", ns).Msg("purged expired cache entries")
		}
		httpCache = &cache.HTTPCache{Dir: httpDir, StrictPerms: cfg.CacheStrictPerms}
		summaryCache = &cache.SummaryCache{Dir: summaryDir, StrictPerms: cfg.CacheStrictPerms}
	}

	fetcher := &fetch.Client{
		HTTPClient:        newHTTPClient(15 * time.Second),
		MaxAttempts:       3,
		Backoff:           500 * time.Millisecond,
		PerRequestTimeout: 15 * time.Second,
		Cache:             httpCache,
		RedirectMaxHops:   5,
		MaxConcurrent:     8,
	}

	bopts := cfg.Bullets
	fopts := cfg.Fallback
	fopts.Bullets = bopts
	sopts := cfg.Summarize
	sopts.Bullets = bopts
	sopts.Fallback = fopts

	providers := summarize.NewChatProviders(cfg.providerConfigs(), newHTTPClient(sopts.Timeout), summaryCache)
	configured := 0
	for _, p := range providers {
		if p.Configured() {
			configured++
			log.Info().Str("provider", p.Name()).Msg("summary provider enabled")
		}
	}
	if configured == 0 {
		log.Warn().Msg("no summary provider credentials; using heuristic summaries")
	}

	cleaner := clean.New(cfg.Clean)
	a := &App{cfg: cfg}
	a.poller = &feed.Poller{Fetcher: fetcher, Window: time.Duration(cfg.HoursBack) * time.Hour}
	a.pipe = &pipeline.Pipeline{
		Fetcher:    fetcher,
		Extractor:  extract.New(cfg.Extract, cleaner),
		Cleaner:    cleaner,
		Summarizer: &summarize.Cascade{Providers: providers, Options: sopts},
		Robots: &robots.Manager{
			HTTPClient:  newHTTPClient(10 * time.Second),
			Cache:       httpCache,
			Agent:       cfg.RobotsAgent,
			EntryExpiry: time.Hour,
		},
		Workers:      cfg.Workers,
		Interval:     cfg.Interval,
		Jitter:       cfg.Jitter,
		PersistDelay: cfg.PersistDelay,
	}

	if !cfg.DryRun {
		a.pipe.Sink = a.buildSink(ctx)
		path := cfg.SeenDBPath
		if path == "" {
			path = store.DefaultPath()
		}
		seen, err := store.Open(path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open seen store: %w", err)
		}
		a.seen = seen
	}
	log.Debug().Str("version", BuildVersion).Str("commit", BuildCommit).Msg("app initialized")
	return a, nil
}

func (a *App) buildSink(ctx context.Context) sink.Sink {
	var sinks sink.Multi
	if a.cfg.NotionToken != "" && a.cfg.NotionDatabaseID != "" {
		sinks = append(sinks, &sink.Notion{
			Token:      a.cfg.NotionToken,
			DatabaseID: a.cfg.NotionDatabaseID,
			HTTPClient: newHTTPClient(30 * time.Second),
		})
	}
	if a.cfg.MongoURI != "" {
		m, err := sink.NewMongo(ctx, a.cfg.MongoURI, a.cfg.MongoDatabase, a.cfg.MongoCollection)
		if err != nil {
			log.Warn().Err(err).Msg("mongo sink disabled")
		} else {
			a.mongo = m
			sinks = append(sinks, m)
		}
	}
	switch len(sinks) {
	case 0:
		log.Warn().Msg("no persistence sink configured; articles will not be saved")
		return nil
	case 1:
		return sinks[0]
	}
	return sinks
}

func (a *App) Close() {
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.mongo.Close(ctx)
	}
	if a.seen != nil {
		_ = a.seen.Close()
	}
}

// Run polls every source, summarizes new items, persists them and writes
// the configured reports.
func (a *App) Run(ctx context.Context) error {
	started := time.Now().UTC()
	runID := uuid.NewString()
	log.Info().Str("run", runID).Int("categories", len(a.cfg.Sources)).Msg("starting aggregation")

	items, errs := a.poller.PollAll(ctx, a.cfg.Sources)
	for _, err := range errs {
		log.Warn().Err(err).Msg("feed poll failed")
	}
	items, err := a.unseen(ctx, items)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrNoSources
	}
	log.Info().Int("items", len(items)).Msg("feed items selected")

	articles, stats := a.pipe.Run(ctx, items)
	a.markSeen(ctx, articles)

	r := report.Report{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Stats:      stats,
		Articles:   articles,
	}
	report.LogSummary(r)
	return a.writeReports(r)
}

// Article runs a single URL through the pipeline without persisting it.
func (a *App) Article(ctx context.Context, pageURL string) (pipeline.Article, error) {
	return a.pipe.Process(ctx, feed.Item{URL: pageURL})
}

func (a *App) unseen(ctx context.Context, items []feed.Item) ([]feed.Item, error) {
	if a.seen == nil || a.cfg.Reprocess {
		return items, nil
	}
	if a.cfg.SeenRetention > 0 {
		if n, err := a.seen.Prune(ctx, time.Now().UTC().Add(-a.cfg.SeenRetention)); err != nil {
			log.Warn().Err(err).Msg("seen store prune failed")
		} else if n > 0 {
			log.Debug().Int64("removed", n).Msg("pruned seen store")
		}
	}
	urls := make([]string, len(items))
	for i, it := range items {
		urls[i] = it.URL
	}
	fresh, err := a.seen.Filter(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("filter seen: %w", err)
	}
	keep := make(map[string]bool, len(fresh))
	for _, u := range fresh {
		keep[u] = true
	}
	out := items[:0:0]
	for _, it := range items {
		if keep[it.URL] {
			out = append(out, it)
		}
	}
	if skipped := len(items) - len(out); skipped > 0 {
		log.Info().Int("skipped", skipped).Msg("already processed")
	}
	return out, nil
}

// markSeen records persisted articles, or every article when no sink is
// configured, so failed saves are retried on the next run.
func (a *App) markSeen(ctx context.Context, articles []pipeline.Article) {
	if a.seen == nil {
		return
	}
	now := time.Now().UTC()
	for _, art := range articles {
		if a.pipe.Sink != nil && !art.Persisted {
			continue
		}
		err := a.seen.Mark(ctx, store.Entry{
			URL:         art.URL,
			Title:       art.Title,
			Provider:    art.SummarizedBy,
			Persisted:   art.Persisted,
			ProcessedAt: now,
		})
		if err != nil {
			log.Warn().Err(err).Str("url", art.URL).Msg("seen store update failed")
		}
	}
}

func (a *App) writeReports(r report.Report) error {
	var errs []error
	if p := strings.TrimSpace(a.cfg.BackupPath); p != "" {
		if err := report.WriteJSON(p, r); err != nil {
			errs = append(errs, err)
		} else {
			log.Info().Str("out", p).Msg("wrote backup")
		}
	}
	if p := strings.TrimSpace(a.cfg.PDFPath); p != "" {
		if err := report.WritePDF(p, r); err != nil {
			errs = append(errs, fmt.Errorf("write pdf: %w", err))
		} else {
			log.Info().Str("out", p).Msg("wrote pdf digest")
		}
	}
	if p := strings.TrimSpace(a.cfg.AtomPath); p != "" {
		if err := report.WriteAtom(p, r, report.FeedMeta{Title: "newsbrief digest", Author: "newsbrief"}); err != nil {
			errs = append(errs, err)
		} else {
			log.Info().Str("out", p).Msg("wrote atom feed")
		}
	}
	return errors.Join(errs...)
}
