package llm

import (
	"context"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the minimal chat-completion surface the summarizers need. It
// mirrors CreateChatCompletion so any OpenAI-compatible backend (OpenAI,
// Groq, the Hugging Face router, a local stub) can stand behind it.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider adapts *openai.Client to Client.
type OpenAIProvider struct {
	Inner *openai.Client
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

// NewOpenAICompatible builds a Client for an OpenAI-compatible endpoint. An
// empty baseURL keeps the go-openai default; hc may be nil.
func NewOpenAICompatible(baseURL, apiKey string, hc *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

// FirstContent returns the trimmed content of the first choice, or "".
func FirstContent(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
