package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/newsbrief/internal/cache"
	"github.com/hyperifyio/newsbrief/internal/llm"
)

// Request is what the cascade hands to every provider. Content is the full
// clean text; each provider bounds it to its own input budget.
type Request struct {
	System  string
	Content string
	Title   string
}

// Provider is one summarization backend in the cascade.
type Provider interface {
	Name() string
	// Configured is false when the provider has no credential.
	Configured() bool
	// Attempt returns the raw model text or an error; it does not retry.
	Attempt(ctx context.Context, req Request) (string, error)
}

var (
	ErrNotConfigured = errors.New("provider not configured")
	ErrEmptyResponse = errors.New("empty provider response")
)

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	Provider string
	Code     int
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.Provider, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// ProviderConfig describes an OpenAI-compatible chat provider.
type ProviderConfig struct {
	Name          string  `yaml:"name" json:"name"`
	BaseURL       string  `yaml:"baseURL" json:"baseURL"`
	APIKey        string  `yaml:"-" json:"-"`
	Model         string  `yaml:"model" json:"model"`
	Temperature   float32 `yaml:"temperature" json:"temperature"`
	TopP          float32 `yaml:"topP" json:"topP"`
	MaxTokens     int     `yaml:"maxTokens" json:"maxTokens"`
	MaxInputChars int     `yaml:"maxInputChars" json:"maxInputChars"`
}

// Default provider names, in cascade order.
const (
	ProviderGroq        = "groq"
	ProviderOpenAI      = "openai"
	ProviderHuggingFace = "huggingface"
)

// DefaultProviderConfigs returns the fast-inference, general-purpose and
// alternate hosted providers without credentials.
func DefaultProviderConfigs() []ProviderConfig {
	return []ProviderConfig{
		{Name: ProviderGroq, BaseURL: "https://api.groq.com/openai/v1", Model: "llama-3.1-8b-instant", Temperature: 0.1, TopP: 0.9, MaxTokens: 300, MaxInputChars: 3000},
		{Name: ProviderOpenAI, BaseURL: "https://api.openai.com/v1", Model: "gpt-3.5-turbo", Temperature: 0.3, MaxTokens: 200, MaxInputChars: 1500},
		{Name: ProviderHuggingFace, BaseURL: "https://router.huggingface.co/v1", Model: "meta-llama/Llama-3.1-8B-Instruct", Temperature: 0.7, MaxTokens: 200, MaxInputChars: 800},
	}
}

// ChatProvider calls an OpenAI-compatible chat completion endpoint.
type ChatProvider struct {
	Config ProviderConfig
	Client llm.Client
	// Cache, when set, short-circuits repeated prompts.
	Cache *cache.SummaryCache
}

// NewChatProviders builds one ChatProvider per config, sharing hc and c.
func NewChatProviders(cfgs []ProviderConfig, hc *http.Client, c *cache.SummaryCache) []Provider {
	out := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		var client llm.Client
		if strings.TrimSpace(cfg.APIKey) != "" {
			client = llm.NewOpenAICompatible(cfg.BaseURL, cfg.APIKey, hc)
		}
		out = append(out, &ChatProvider{Config: cfg, Client: client, Cache: c})
	}
	return out
}

func (p *ChatProvider) Name() string { return p.Config.Name }

func (p *ChatProvider) Configured() bool {
	return p.Client != nil && strings.TrimSpace(p.Config.APIKey) != ""
}

func (p *ChatProvider) Attempt(ctx context.Context, req Request) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}
	user := UserPrompt(req.Title, req.Content, p.Config.MaxInputChars)
	key := cache.KeyFrom(p.Config.Name, p.Config.Model, req.System+"\n\n"+user)
	if p.Cache != nil {
		if e, ok, _ := p.Cache.Get(ctx, key); ok && strings.TrimSpace(e.Raw) != "" {
			return e.Raw, nil
		}
	}
	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.Config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: p.Config.Temperature,
		TopP:        p.Config.TopP,
		MaxTokens:   p.Config.MaxTokens,
		N:           1,
	})
	if err != nil {
		return "", statusError(p.Config.Name, err)
	}
	out := llm.FirstContent(resp)
	if out == "" {
		return "", ErrEmptyResponse
	}
	if p.Cache != nil {
		_ = p.Cache.Save(ctx, key, cache.SummaryEntry{Provider: p.Config.Name, Model: p.Config.Model, Raw: out})
	}
	return out, nil
}

func statusError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: provider, Code: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: provider, Code: reqErr.HTTPStatusCode, Err: err}
	}
	if m := statusCodeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return &StatusError{Provider: provider, Code: code, Err: err}
	}
	return fmt.Errorf("%s: %w", provider, err)
}

// go-openai reports non-JSON error bodies as plain errors.
var statusCodeRe = regexp.MustCompile(`status code: (\d{3})`)
