package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/newsbrief/internal/app"
	"github.com/hyperifyio/newsbrief/internal/clean"
	"github.com/hyperifyio/newsbrief/internal/extract"
	"github.com/hyperifyio/newsbrief/internal/fetch"
	"github.com/hyperifyio/newsbrief/internal/report"
	"github.com/hyperifyio/newsbrief/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	showText := flag.Bool("text", false, "Also print the cleaned article text")
	style := flag.String("style", "", "Summary style")
	recent := flag.Int("recent", 0, "List the N most recently processed articles and exit")
	reportPath := flag.String("report", "", "Print a JSON run report and exit")
	flag.Parse()

	_ = app.LoadEnvFiles(false, ".env")
	cfg := app.DefaultConfig()
	app.ApplyEnvOverrides(&cfg)

	switch {
	case *recent > 0:
		if err := printRecent(context.Background(), os.Stdout, cfg.SeenDBPath, *recent); err != nil {
			fmt.Println("err:", err)
			os.Exit(1)
		}
		return
	case *reportPath != "":
		if err := printReport(os.Stdout, *reportPath); err != nil {
			fmt.Println("err:", err)
			os.Exit(1)
		}
		return
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: debugextract [-text] [-style s] <url> | -recent N | -report file.json")
		os.Exit(2)
	}
	pageURL := flag.Arg(0)

	cfg.DryRun = true
	cfg.CacheDir = ""
	if *style != "" {
		cfg.Summarize.Style = *style
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *showText {
		f := &fetch.Client{MaxAttempts: 2, PerRequestTimeout: 20 * time.Second}
		page, err := f.Fetch(ctx, pageURL)
		if err != nil {
			fmt.Println("fetch err:", err)
			os.Exit(1)
		}
		cleaner := clean.New(cfg.Clean)
		doc, ok := extract.New(cfg.Extract, cleaner).Extract(page.Body, page.FinalURL)
		fmt.Printf("extracted: %t strategy: %s\n\n%s\n\n", ok, doc.Strategy, cleaner.Clean(doc.RawText))
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Println("init err:", err)
		os.Exit(1)
	}
	defer a.Close()
	art, err := a.Article(ctx, pageURL)
	if err != nil {
		fmt.Println("err:", err)
		os.Exit(1)
	}
	fmt.Printf("title: %s\nstrategy: %s\nprovider: %s\n%s\n", art.Title, art.Strategy, art.SummarizedBy, art.Summary)
}

// printRecent lists entries from the seen-article database, newest first.
func printRecent(ctx context.Context, w io.Writer, dbPath string, n int) error {
	if dbPath == "" {
		dbPath = store.DefaultPath()
	}
	seen, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer seen.Close()
	entries, err := seen.Recent(ctx, n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\tpersisted=%t\t%s\t%s\n", e.ProcessedAt.Format(time.RFC3339), e.Provider, e.Persisted, e.URL, e.Title)
	}
	return nil
}

// printReport prints the stats and per-article bullets of a saved run.
func printReport(w io.Writer, path string) error {
	r, err := report.ReadJSON(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "run %s: processed %d, persisted %d, skipped %d\n", r.RunID, r.Stats.Processed, r.Stats.Persisted, r.Stats.Skipped)
	for _, a := range r.Articles {
		fmt.Fprintf(w, "\n[%s] %s (%s)\n%s\n", a.Category, a.Title, a.SummarizedBy, a.Summary)
	}
	return nil
}
