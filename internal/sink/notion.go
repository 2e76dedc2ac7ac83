package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/newsbrief/internal/retry"
)

const (
	DefaultNotionBaseURL = "https://api.notion.com"
	NotionVersion        = "2022-06-28"
)

// NotionError is a non-success response from the Notion API.
type NotionError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *NotionError) Error() string {
	return fmt.Sprintf("notion: status %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *NotionError) validation() bool {
	return e.Status == http.StatusBadRequest && e.Code == "validation_error"
}

func (e *NotionError) transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Notion creates one database page per record.
type Notion struct {
	Token      string
	DatabaseID string
	BaseURL    string
	HTTPClient *http.Client
	// Attempts bounds retries on 429 and 5xx responses. Zero means 3.
	Attempts int
	Backoff  time.Duration
}

func (n *Notion) Name() string { return "notion" }

// Save posts the full page; on a validation error it retries once with only
// title, URL and summary.
func (n *Notion) Save(ctx context.Context, r Record) error {
	r, err := Normalize(r)
	if err != nil {
		return err
	}
	err = n.post(ctx, n.page(r, false))
	var ne *NotionError
	if errors.As(err, &ne) && ne.validation() {
		log.Warn().Str("url", r.URL).Str("message", ne.Message).Msg("notion rejected page, retrying reduced payload")
		return n.post(ctx, n.page(r, true))
	}
	return err
}

func richText(s string) []map[string]any {
	return []map[string]any{{"text": map[string]any{"content": s}}}
}

func (n *Notion) page(r Record, reduced bool) map[string]any {
	props := map[string]any{
		"Title":   map[string]any{"title": richText(r.Title)},
		"URL":     map[string]any{"url": r.URL},
		"Summary": map[string]any{"rich_text": richText(r.Summary)},
	}
	if !reduced {
		if r.Source != "" {
			props["Source"] = map[string]any{"rich_text": richText(r.Source)}
		}
		if !r.Published.IsZero() {
			props["Published"] = map[string]any{"date": map[string]any{"start": r.Published.UTC().Format(time.RFC3339)}}
		}
		if r.Category != "" {
			props["Category"] = map[string]any{"select": map[string]any{"name": r.Category}}
		}
	}
	return map[string]any{
		"parent":     map[string]any{"database_id": n.DatabaseID},
		"properties": props,
	}
}

func (n *Notion) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	base := strings.TrimRight(n.BaseURL, "/")
	if base == "" {
		base = DefaultNotionBaseURL
	}
	client := n.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	attempts := n.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoffBase := n.Backoff
	if backoffBase <= 0 {
		backoffBase = time.Second
	}

	return retry.Do(ctx, retry.Exponential(attempts, backoffBase, 10*backoffBase), "notion create page", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/pages", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+n.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Notion-Version", NotionVersion)
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		ne := &NotionError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(raw, ne) != nil || ne.Message == "" {
			ne.Message = strings.TrimSpace(string(raw))
		}
		ne.Status = resp.StatusCode
		return ne
	}, func(err error) bool {
		var ne *NotionError
		if errors.As(err, &ne) {
			return ne.transient()
		}
		return !errors.Is(err, context.Canceled)
	})
}
