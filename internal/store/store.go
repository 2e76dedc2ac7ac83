// Package store remembers which article URLs were already processed so
// repeated runs over the same feeds skip them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"
)

// DefaultPath is the seen-article database under the XDG data directory.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "newsbrief", "seen.db")
}

// Entry is one processed article.
type Entry struct {
	URL         string
	Title       string
	Provider    string
	Persisted   bool
	ProcessedAt time.Time
}

// Seen is a SQLite-backed set of processed URLs.
type Seen struct {
	db *sql.DB
}

// Open creates the database file and schema when missing.
func Open(dbPath string) (*Seen, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening seen db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Seen{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Seen) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS seen (
			url          TEXT PRIMARY KEY,
			title        TEXT NOT NULL DEFAULT '',
			provider     TEXT NOT NULL DEFAULT '',
			persisted    INTEGER NOT NULL DEFAULT 0,
			processed_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_seen_processed ON seen(processed_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Seen) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Has reports whether url was recorded.
func (s *Seen) Has(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM seen WHERE url = ?`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query seen %s: %w", url, err)
	}
	return n > 0, nil
}

// Filter returns the urls not yet recorded, preserving order.
func (s *Seen) Filter(ctx context.Context, urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		ok, err := s.Has(ctx, u)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Mark records an entry, replacing an earlier record for the same URL.
func (s *Seen) Mark(ctx context.Context, e Entry) error {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen (url, title, provider, persisted, processed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			provider = excluded.provider,
			persisted = excluded.persisted,
			processed_at = excluded.processed_at
	`, e.URL, e.Title, e.Provider, e.Persisted, e.ProcessedAt)
	if err != nil {
		return fmt.Errorf("marking %s: %w", e.URL, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Seen) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, title, provider, persisted, processed_at
		FROM seen ORDER BY processed_at DESC, url LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.URL, &e.Title, &e.Provider, &e.Persisted, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries processed before cutoff and returns how many.
func (s *Seen) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM seen WHERE processed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune seen: %w", err)
	}
	return res.RowsAffected()
}
