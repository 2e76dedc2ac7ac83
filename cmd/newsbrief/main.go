package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/newsbrief/internal/app"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := loadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(2)
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(exitCode(err))
	}
}

// loadConfig layers defaults < config file < env < explicitly set flags.
func loadConfig(fs *flag.FlagSet, args []string) (app.Config, error) {
	var (
		configPath   string
		envFiles     string
		sources      string
		hoursBack    int
		workers      int
		interval     time.Duration
		style        string
		backupPath   string
		pdfPath      string
		atomPath     string
		seenDB       string
		cacheDir     string
		cacheMaxAge  time.Duration
		cacheClear   bool
		providerBase string
		reprocess    bool
		dryRun       bool
		verbose      bool
		version      bool
	)
	fs.StringVar(&configPath, "config", os.Getenv("NEWSBRIEF_CONFIG"), "Path to YAML or JSON config file")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files loaded before reading the environment")
	fs.StringVar(&sources, "sources", "", "Feeds as category=url entries separated by commas, e.g. Tech=https://example.com/feed")
	fs.IntVar(&hoursBack, "hours", 24, "Only process items published within this many hours")
	fs.IntVar(&workers, "workers", 1, "Articles processed concurrently")
	fs.DurationVar(&interval, "interval", time.Second, "Minimum spacing between article starts across all workers")
	fs.StringVar(&style, "style", "", "Summary style: product_manager, investor, tech_executive or simple")
	fs.StringVar(&backupPath, "backup", "articles_backup.json", "Path of the JSON backup (empty disables)")
	fs.StringVar(&pdfPath, "pdf", "", "Optional path of a PDF digest")
	fs.StringVar(&atomPath, "atom", "", "Optional path of an Atom feed")
	fs.StringVar(&seenDB, "seen.db", "", "Seen-article database path (default under the XDG data dir)")
	fs.StringVar(&cacheDir, "cache.dir", ".newsbrief-cache", "Cache directory path (empty disables caching)")
	fs.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this; 0 disables")
	fs.BoolVar(&cacheClear, "cache.clear", false, "Clear cache directory before run")
	fs.StringVar(&providerBase, "provider.base", "", "Send every provider to this OpenAI-compatible base URL")
	fs.BoolVar(&reprocess, "reprocess", false, "Ignore the seen-article store")
	fs.BoolVar(&dryRun, "dry-run", false, "Summarize without persisting or touching the seen store")
	fs.BoolVar(&verbose, "v", false, "Verbose logging")
	fs.BoolVar(&version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, err
	}
	if version {
		fmt.Printf("newsbrief %s (%s, %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		os.Exit(0)
	}

	if err := app.LoadEnvFiles(false, splitList(envFiles)...); err != nil {
		return app.Config{}, fmt.Errorf("load env: %w", err)
	}
	cfg := app.DefaultConfig()
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return app.Config{}, fmt.Errorf("load config %s: %w", configPath, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sources":
			m, err := parseSources(sources)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Sources = m
		case "hours":
			cfg.HoursBack = hoursBack
		case "workers":
			cfg.Workers = workers
		case "interval":
			cfg.Interval = interval
		case "style":
			cfg.Summarize.Style = style
		case "backup":
			cfg.BackupPath = backupPath
		case "pdf":
			cfg.PDFPath = pdfPath
		case "atom":
			cfg.AtomPath = atomPath
		case "seen.db":
			cfg.SeenDBPath = seenDB
		case "cache.dir":
			cfg.CacheDir = cacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = cacheMaxAge
		case "cache.clear":
			cfg.CacheClear = cacheClear
		case "provider.base":
			cfg.ProviderBaseURL = providerBase
		case "reprocess":
			cfg.Reprocess = reprocess
		case "dry-run":
			cfg.DryRun = dryRun
		case "v":
			cfg.Verbose = verbose
		}
	})
	if flagErr != nil {
		return app.Config{}, flagErr
	}
	return cfg, app.ValidateConfig(cfg)
}

// parseSources reads "Tech=https://a,Tech=https://b,Health=https://c".
func parseSources(s string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, entry := range splitList(s) {
		cat, u, ok := strings.Cut(entry, "=")
		cat, u = strings.TrimSpace(cat), strings.TrimSpace(u)
		if !ok || cat == "" || u == "" {
			return nil, fmt.Errorf("invalid source %q, want category=url", entry)
		}
		out[cat] = append(out[cat], u)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// exitCode maps an empty batch to 3; every other failure is 1.
func exitCode(err error) int {
	if errors.Is(err, app.ErrNoSources) {
		return 3
	}
	return 1
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return a.Run(ctx)
}
