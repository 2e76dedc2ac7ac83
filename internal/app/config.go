package app

import (
	"time"

	"github.com/hyperifyio/newsbrief/internal/bullets"
	"github.com/hyperifyio/newsbrief/internal/clean"
	"github.com/hyperifyio/newsbrief/internal/extract"
	"github.com/hyperifyio/newsbrief/internal/fallback"
	"github.com/hyperifyio/newsbrief/internal/summarize"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Sources maps a category to its feed URLs.
	Sources map[string][]string

	// Providers
	GroqAPIKey       string
	OpenAIAPIKey     string
	HuggingFaceToken string
	GroqModel        string
	OpenAIModel      string
	HuggingFaceModel string
	// ProviderBaseURL, when set, points every provider at one
	// OpenAI-compatible server, e.g. cmd/openai-stub.
	ProviderBaseURL string

	// Sinks
	NotionToken      string
	NotionDatabaseID string
	MongoURI         string
	MongoDatabase    string
	MongoCollection  string

	// Batch
	HoursBack    int
	Workers      int
	Interval     time.Duration
	Jitter       time.Duration
	PersistDelay time.Duration
	// Reprocess ignores the seen store when selecting items.
	Reprocess bool

	// Outputs
	BackupPath string
	PDFPath    string
	AtomPath   string
	SeenDBPath string
	// SeenRetention prunes seen-store entries older than this. Zero keeps all.
	SeenRetention time.Duration

	// Behavior
	DryRun           bool
	Verbose          bool
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	RobotsAgent      string

	// Thresholds
	Extract   extract.Options
	Clean     clean.Options
	Bullets   bullets.Options
	Fallback  fallback.Options
	Summarize summarize.Options
}

// DefaultSources are the technology and healthcare feeds polled when no
// sources are configured.
func DefaultSources() map[string][]string {
	return map[string][]string{
		"Tech": {
			"https://techcrunch.com/feed/",
			"https://openai.com/blog/rss.xml",
			"https://www.lennysnewsletter.com/feed",
		},
		"Health": {
			"https://www.medicalnewstoday.com/feeds/news.xml",
			"https://www.mobihealthnews.com/feed/",
			"https://www.fiercehealthcare.com/rss.xml",
			"https://medcitynews.com/feed/",
		},
	}
}

// DefaultConfig returns the configuration used before file, env and flag
// layers are applied.
func DefaultConfig() Config {
	return Config{
		Sources:         DefaultSources(),
		MongoDatabase:   "newsbrief",
		MongoCollection: "articles",
		HoursBack:       24,
		Workers:         1,
		Interval:        time.Second,
		Jitter:          500 * time.Millisecond,
		PersistDelay:    500 * time.Millisecond,
		BackupPath:      "articles_backup.json",
		SeenRetention:   30 * 24 * time.Hour,
		CacheDir:        ".newsbrief-cache",
		Extract:         extract.DefaultOptions(),
		Clean:           clean.DefaultOptions(),
		Bullets:         bullets.DefaultOptions(),
		Fallback:        fallback.DefaultOptions(),
		Summarize:       summarize.DefaultOptions(),
	}
}

// providerConfigs returns the cascade order with credentials and model
// overrides from cfg applied.
func (cfg Config) providerConfigs() []summarize.ProviderConfig {
	out := summarize.DefaultProviderConfigs()
	for i := range out {
		switch out[i].Name {
		case summarize.ProviderGroq:
			out[i].APIKey = cfg.GroqAPIKey
			out[i].Model = pickNonEmpty(cfg.GroqModel, out[i].Model)
		case summarize.ProviderOpenAI:
			out[i].APIKey = cfg.OpenAIAPIKey
			out[i].Model = pickNonEmpty(cfg.OpenAIModel, out[i].Model)
		case summarize.ProviderHuggingFace:
			out[i].APIKey = cfg.HuggingFaceToken
			out[i].Model = pickNonEmpty(cfg.HuggingFaceModel, out[i].Model)
		}
		if cfg.ProviderBaseURL != "" {
			out[i].BaseURL = cfg.ProviderBaseURL
		}
	}
	return out
}

func pickNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
