package report

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/feeds"
)

// FeedMeta describes the generated Atom feed.
type FeedMeta struct {
	Title  string
	Link   string
	Author string
}

// Atom renders the run's articles as an Atom feed whose entry content is the
// bullet summary.
func Atom(r Report, meta FeedMeta) (string, error) {
	updated := r.FinishedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	title := meta.Title
	if title == "" {
		title = "newsbrief digest"
	}
	f := &feeds.Feed{
		Title:   title,
		Link:    &feeds.Link{Href: meta.Link},
		Author:  &feeds.Author{Name: meta.Author},
		Id:      "urn:uuid:" + r.RunID,
		Created: r.StartedAt,
		Updated: updated,
	}
	for _, a := range r.Articles {
		lines := a.Summary.Strings()
		for i, b := range lines {
			lines[i] = "<li>" + html.EscapeString(b) + "</li>"
		}
		f.Items = append(f.Items, &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: a.URL},
			Id:          a.URL,
			Description: a.Summary.String(),
			Content:     "<ul>" + strings.Join(lines, "") + "</ul>",
			Author:      &feeds.Author{Name: a.Source},
			Created:     a.Published,
		})
	}
	return f.ToAtom()
}

// WriteAtom writes Atom to path, creating parent directories.
func WriteAtom(path string, r Report, meta FeedMeta) error {
	out, err := Atom(r, meta)
	if err != nil {
		return fmt.Errorf("render atom: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return os.WriteFile(path, []byte(out), 0o644)
}
