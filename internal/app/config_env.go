package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides overwrites cfg fields whose environment variables are
// set. Env takes precedence over a config file; flags are applied after it.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&cfg.GroqAPIKey, "GROQ_API_KEY")
	setString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.HuggingFaceToken, "HUGGINGFACE_TOKEN", "HF_TOKEN")
	setString(&cfg.GroqModel, "GROQ_MODEL")
	setString(&cfg.OpenAIModel, "OPENAI_MODEL")
	setString(&cfg.HuggingFaceModel, "HUGGINGFACE_MODEL")
	setString(&cfg.ProviderBaseURL, "PROVIDER_BASE_URL")
	setString(&cfg.NotionToken, "NOTION_TOKEN")
	setString(&cfg.NotionDatabaseID, "NOTION_DATABASE_ID")
	setString(&cfg.MongoURI, "MONGO_URI")
	setString(&cfg.MongoDatabase, "MONGO_DATABASE")
	setString(&cfg.MongoCollection, "MONGO_COLLECTION")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.SeenDBPath, "SEEN_DB")
	setString(&cfg.BackupPath, "BACKUP_PATH")
	setString(&cfg.Summarize.Style, "SUMMARY_STYLE")

	setInt := func(dst *int, key string) {
		if s := strings.TrimSpace(os.Getenv(key)); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				*dst = n
			}
		}
	}
	setInt(&cfg.HoursBack, "HOURS_BACK")
	setInt(&cfg.Workers, "WORKERS")

	setDuration := func(dst *time.Duration, key string) {
		if s := strings.TrimSpace(os.Getenv(key)); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				*dst = d
			}
		}
	}
	setDuration(&cfg.Interval, "REQUEST_INTERVAL")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")

	setBool := func(dst *bool, key string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}
