// Package answer composes a grounded reply from a numbered retrieval context
// and checks that the reply cites that context.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/lexgraph/llm"
)

// Reply statuses.
const (
	StatusOK         = "ok"
	StatusNoContext  = "no_context"
	StatusNotCovered = "not_covered"
)

// NotCovered is the sentence the model must give when the context does not
// answer the question.
const NotCovered = "Les documents fournis ne couvrent pas cette question."

// ErrCompletion wraps every chat provider failure.
var ErrCompletion = errors.New("answer: completion failed")

const systemPrompt = `Vous êtes un assistant juridique. Vous répondez uniquement à partir des extraits fournis dans le contexte, numérotés 【1】, 【2】, etc.

Règles :
- Chaque affirmation est suivie du marqueur de l'extrait qui la fonde, par exemple 【2】.
- N'utilisez que les marqueurs présents dans le contexte. N'inventez jamais d'article, de décision ni de source.
- Vous pouvez raisonner, mais toute conclusion juridique doit reposer sur les extraits.
- Si les extraits ne permettent pas de répondre, répondez exactement : « ` + NotCovered + ` »
- Répondez en français, de manière claire et précise.`

// Config configures a Composer.
type Config struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// Answer is a composed reply. Markers are the 【n】 numbers cited in Text that
// exist in the context; InvalidMarkers are cited numbers that do not.
type Answer struct {
	Text             string   `json:"text"`
	Status           string   `json:"status"`
	Markers          []int    `json:"markers"`
	InvalidMarkers   []int    `json:"invalid_markers,omitempty"`
	Repaired         bool     `json:"repaired,omitempty"`
	Issues           []string `json:"issues,omitempty"`
	Confidence       float64  `json:"confidence"`
	ModelUsed        string   `json:"model_used,omitempty"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	ElapsedMs        int64    `json:"elapsed_ms"`
}

// Composer sends the question and context to a chat provider.
type Composer struct {
	chat  llm.Provider
	cfg   Config
	rules Rules
}

// New creates a Composer. rules may be empty.
func New(chat llm.Provider, cfg Config, rules Rules) *Composer {
	return &Composer{chat: chat, cfg: cfg, rules: rules}
}

// SystemPrompt returns the full system prompt, rules included.
func (c *Composer) SystemPrompt() string {
	if r := c.rules.Text(); r != "" {
		return systemPrompt + "\n\n" + r
	}
	return systemPrompt
}

// Compose answers question from contextText. An empty context returns a
// no_context answer without calling the provider. A reply that cites
// nothing gets a Sources line listing every context block.
func (c *Composer) Compose(ctx context.Context, question, contextText string) (*Answer, error) {
	if strings.TrimSpace(contextText) == "" {
		return &Answer{Text: NotCovered, Status: StatusNoContext, Markers: []int{}}, nil
	}
	if c.chat == nil {
		return nil, fmt.Errorf("%w: no chat provider configured", ErrCompletion)
	}

	start := time.Now()
	resp, err := c.chat.Chat(ctx, llm.ChatRequest{
		Model: c.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: c.SystemPrompt()},
			{Role: "user", Content: buildUserPrompt(question, contextText)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	ans := &Answer{
		Text:             strings.TrimSpace(resp.Content),
		Status:           StatusOK,
		ModelUsed:        resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
	}

	available := ContextMarkers(contextText)
	v := validate(ans.Text, available)
	ans.Markers, ans.InvalidMarkers = v.valid, v.invalid

	switch {
	case isNotCovered(ans.Text) && len(v.cited) == 0:
		ans.Status = StatusNotCovered
	case len(v.cited) == 0:
		ans.Text += "\n\n" + sourcesLine(available)
		ans.Markers = available
		ans.Repaired = true
	}
	ans.Issues = v.issues
	ans.Confidence = v.confidence()
	ans.ElapsedMs = time.Since(start).Milliseconds()

	slog.Info("answer: composed",
		"status", ans.Status, "markers", len(ans.Markers), "invalid", len(ans.InvalidMarkers),
		"repaired", ans.Repaired, "tokens", ans.TotalTokens,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return ans, nil
}

func buildUserPrompt(question, contextText string) string {
	return fmt.Sprintf("Contexte :\n\n%s\n\nQuestion : %s", contextText, question)
}

func isNotCovered(text string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSuffix(NotCovered, ".")))
}
