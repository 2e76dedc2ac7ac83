package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/newsbrief/internal/app"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("newsbrief", flag.ContinueOnError)
}

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nb.yaml")
	y := "batch:\n  hoursBack: 6\n  workers: 2\noutput:\n  pdf: from-file.pdf\n"
	if err := os.WriteFile(cfgPath, []byte(y), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOURS_BACK", "12")
	t.Setenv("WORKERS", "")
	t.Setenv("GROQ_API_KEY", "")
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("GROQ_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	os.Unsetenv("GROQ_API_KEY")

	cfg, err := loadConfig(newFlagSet(), []string{
		"-config", cfgPath,
		"-env", envPath,
		"-workers", "4",
		"-sources", "Tech=https://a.example/feed,Tech=https://b.example/feed",
		"-dry-run",
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HoursBack != 12 {
		t.Fatalf("env should beat file: HoursBack=%d", cfg.HoursBack)
	}
	if cfg.Workers != 4 {
		t.Fatalf("flag should beat file: Workers=%d", cfg.Workers)
	}
	if cfg.PDFPath != "from-file.pdf" {
		t.Fatalf("file value lost: PDFPath=%q", cfg.PDFPath)
	}
	if cfg.Interval != time.Second {
		t.Fatalf("unset flag must not override: Interval=%s", cfg.Interval)
	}
	if cfg.GroqAPIKey != "from-dotenv" {
		t.Fatalf("GroqAPIKey=%q", cfg.GroqAPIKey)
	}
	if got := cfg.Sources["Tech"]; len(got) != 2 || len(cfg.Sources) != 1 {
		t.Fatalf("sources=%v", cfg.Sources)
	}
	if !cfg.DryRun {
		t.Fatalf("dry-run flag not applied")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("HOURS_BACK", "")
	t.Setenv("SUMMARY_STYLE", "")
	if _, err := loadConfig(newFlagSet(), []string{"-env", "", "-style", "pirate"}); err == nil {
		t.Fatalf("expected unknown style error")
	}
	if _, err := loadConfig(newFlagSet(), []string{"-env", "", "-sources", "no-equals-sign"}); err == nil {
		t.Fatalf("expected source parse error")
	}
	if _, err := loadConfig(newFlagSet(), []string{"-env", "", "-workers", "-2"}); err == nil {
		t.Fatalf("expected negative workers error")
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(fmt.Errorf("run: %w", app.ErrNoSources)); got != 3 {
		t.Fatalf("ErrNoSources exit=%d", got)
	}
	if got := exitCode(errors.New("boom")); got != 1 {
		t.Fatalf("generic exit=%d", got)
	}
}
