package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/newsbrief/internal/bullets"
	"github.com/hyperifyio/newsbrief/internal/clean"
	"github.com/hyperifyio/newsbrief/internal/extract"
	"github.com/hyperifyio/newsbrief/internal/fallback"
	"github.com/hyperifyio/newsbrief/internal/summarize"
)

// FileConfig represents the single-file configuration schema. Credentials
// are read from the environment only.
type FileConfig struct {
	Sources map[string][]string `yaml:"sources" json:"sources"`

	Models struct {
		Groq        string `yaml:"groq" json:"groq"`
		OpenAI      string `yaml:"openai" json:"openai"`
		HuggingFace string `yaml:"huggingface" json:"huggingface"`
		BaseURL     string `yaml:"baseURL" json:"baseURL"`
	} `yaml:"models" json:"models"`

	Mongo struct {
		Database   string `yaml:"database" json:"database"`
		Collection string `yaml:"collection" json:"collection"`
	} `yaml:"mongo" json:"mongo"`

	Batch struct {
		HoursBack    int           `yaml:"hoursBack" json:"hoursBack"`
		Workers      int           `yaml:"workers" json:"workers"`
		Interval     time.Duration `yaml:"interval" json:"interval"`
		Jitter       time.Duration `yaml:"jitter" json:"jitter"`
		PersistDelay time.Duration `yaml:"persistDelay" json:"persistDelay"`
	} `yaml:"batch" json:"batch"`

	Output struct {
		Backup string `yaml:"backup" json:"backup"`
		PDF    string `yaml:"pdf" json:"pdf"`
		Atom   string `yaml:"atom" json:"atom"`
		SeenDB string `yaml:"seenDB" json:"seenDB"`
	} `yaml:"output" json:"output"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	DryRun      bool   `yaml:"dryRun" json:"dryRun"`
	Verbose     bool   `yaml:"verbose" json:"verbose"`
	RobotsAgent string `yaml:"robotsAgent" json:"robotsAgent"`

	Extract   *extract.Options   `yaml:"extract" json:"extract"`
	Clean     *clean.Options     `yaml:"clean" json:"clean"`
	Bullets   *bullets.Options   `yaml:"bullets" json:"bullets"`
	Fallback  *fallback.Options  `yaml:"fallback" json:"fallback"`
	Summarize *summarize.Options `yaml:"summarize" json:"summarize"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays the non-zero values of fc onto cfg. It runs
// before env and flags, so it only replaces defaults.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if len(fc.Sources) > 0 {
		cfg.Sources = make(map[string][]string, len(fc.Sources))
		for k, v := range fc.Sources {
			cfg.Sources[k] = append([]string(nil), v...)
		}
	}

	setString := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setString(&cfg.GroqModel, fc.Models.Groq)
	setString(&cfg.OpenAIModel, fc.Models.OpenAI)
	setString(&cfg.HuggingFaceModel, fc.Models.HuggingFace)
	setString(&cfg.ProviderBaseURL, fc.Models.BaseURL)
	setString(&cfg.MongoDatabase, fc.Mongo.Database)
	setString(&cfg.MongoCollection, fc.Mongo.Collection)
	setString(&cfg.BackupPath, fc.Output.Backup)
	setString(&cfg.PDFPath, fc.Output.PDF)
	setString(&cfg.AtomPath, fc.Output.Atom)
	setString(&cfg.SeenDBPath, fc.Output.SeenDB)
	setString(&cfg.CacheDir, fc.Cache.Dir)
	setString(&cfg.RobotsAgent, fc.RobotsAgent)

	if fc.Batch.HoursBack != 0 {
		cfg.HoursBack = fc.Batch.HoursBack
	}
	if fc.Batch.Workers != 0 {
		cfg.Workers = fc.Batch.Workers
	}
	if fc.Batch.Interval != 0 {
		cfg.Interval = fc.Batch.Interval
	}
	if fc.Batch.Jitter != 0 {
		cfg.Jitter = fc.Batch.Jitter
	}
	if fc.Batch.PersistDelay != 0 {
		cfg.PersistDelay = fc.Batch.PersistDelay
	}
	if fc.Cache.MaxAge != 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	cfg.CacheClear = cfg.CacheClear || fc.Cache.Clear
	cfg.CacheStrictPerms = cfg.CacheStrictPerms || fc.Cache.StrictPerms
	cfg.DryRun = cfg.DryRun || fc.DryRun
	cfg.Verbose = cfg.Verbose || fc.Verbose

	// Threshold sections replace the defaults wholesale; zero fields inside
	// them fall back to each package's defaults.
	if fc.Extract != nil {
		cfg.Extract = *fc.Extract
	}
	if fc.Clean != nil {
		cfg.Clean = *fc.Clean
	}
	if fc.Bullets != nil {
		cfg.Bullets = *fc.Bullets
	}
	if fc.Fallback != nil {
		cfg.Fallback = *fc.Fallback
	}
	if fc.Summarize != nil {
		cfg.Summarize = *fc.Summarize
	}
}

// ValidateConfig rejects settings that cannot be run. Missing credentials
// are not errors; they disable the provider or sink that needs them.
func ValidateConfig(cfg Config) error {
	if len(cfg.Sources) == 0 {
		return errors.New("config: at least one source is required")
	}
	for cat, urls := range cfg.Sources {
		if strings.TrimSpace(cat) == "" {
			return errors.New("config: source category must not be empty")
		}
		if len(urls) == 0 {
			return fmt.Errorf("config: source category %q has no feeds", cat)
		}
	}
	if cfg.HoursBack < 0 || cfg.Workers < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.Interval < 0 || cfg.Jitter < 0 || cfg.PersistDelay < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	e, c, b, f, s := cfg.Extract, cfg.Clean, cfg.Bullets, cfg.Fallback, cfg.Summarize
	for _, n := range []int{
		e.SelectorMinChars, e.MinParagraphChars, e.MinTextChars,
		c.MinLineChars, c.MinLineWords, c.MaxChars, c.MaxDelimiters,
		b.MinWords, b.MaxWords, b.MinUnmarkedChars, b.MaxBullets,
		f.MinSourceChars, f.MinSentenceChars, f.MaxSentences,
		s.MinInputChars, s.MinSummaryChars,
	} {
		if n < 0 {
			return errors.New("config: negative thresholds are not allowed")
		}
	}
	if b.MinWords > 0 && b.MaxWords > 0 && b.MinWords > b.MaxWords {
		return errors.New("config: bullets.minWords exceeds bullets.maxWords")
	}
	if s.Timeout < 0 || s.RetryDelay < 0 {
		return errors.New("config: negative summarize durations are not allowed")
	}
	if s.Style != "" && !summarize.ValidStyle(s.Style) {
		return fmt.Errorf("config: unknown summary style %q (want one of %s)", s.Style, strings.Join(summarize.Styles(), ", "))
	}
	return nil
}
