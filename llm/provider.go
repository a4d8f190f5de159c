package llm

import (
	"context"
	"fmt"
)

// Provider is the interface for chat and embedding calls.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates embeddings for a batch of texts. The result is indexed
	// like texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, openai, custom, or a preset name
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	// RequestsPerMinute throttles calls when positive.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
}

// compatPresets are hosted OpenAI-compatible APIs that only differ by
// their default base URL and path prefix.
var compatPresets = map[string]struct {
	baseURL string
	prefix  string
}{
	"lmstudio":   {"http://localhost:1234", "/v1"},
	"openrouter": {"https://openrouter.ai/api", "/v1"},
	"groq":       {"https://api.groq.com/openai", "/v1"},
	"xai":        {"https://api.x.ai", "/v1"},
	"mistral":    {"https://api.mistral.ai", "/v1"},
	"gemini":     {"https://generativelanguage.googleapis.com/v1beta/openai", ""},
}

// NewProvider creates an LLM provider from configuration, throttled when
// cfg.RequestsPerMinute is set.
func NewProvider(cfg Config) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "ollama":
		p = NewOllama(cfg)
	case "openai":
		p = NewOpenAI(cfg)
	case "custom":
		p = NewOpenAICompat(cfg)
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		preset, ok := compatPresets[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = preset.baseURL
		}
		p = &openAICompatProvider{base: newOpenAICompatClientPrefix(cfg, preset.prefix)}
	}
	if cfg.RequestsPerMinute > 0 {
		p = WithRateLimit(p, cfg.RequestsPerMinute)
	}
	return p, nil
}
