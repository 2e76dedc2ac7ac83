package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// SummaryEntry is one cached provider response.
type SummaryEntry struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Raw      string    `json:"raw"`
	SavedAt  time.Time `json:"saved_at"`
}

// SummaryCache stores raw provider output keyed by provider, model and prompt
// digest so re-runs over the same article do not spend quota twice.
type SummaryCache struct {
	Dir string
	// StrictPerms enforces 0700 directories and 0600 files.
	StrictPerms bool
}

// KeyFrom builds a cache key from provider, model and prompt.
func KeyFrom(provider, model, prompt string) string {
	h := sha256.Sum256([]byte(provider + "\n" + model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *SummaryCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns the cached entry if present. Misses are not errors.
func (c *SummaryCache) Get(_ context.Context, key string) (SummaryEntry, bool, error) {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return SummaryEntry{}, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return SummaryEntry{}, false, nil
	}
	var e SummaryEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return SummaryEntry{}, false, nil
	}
	// Touch file mtime on access so age-based purges keep hot entries
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return e, true, nil
}

// Save writes an entry to cache.
func (c *SummaryCache) Save(_ context.Context, key string, e SummaryEntry) error {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(c.pathFor(key), b, fileMode(c.StrictPerms))
}
