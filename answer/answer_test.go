package answer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/lexgraph/llm"
)

type fakeChat struct {
	reply string
	err   error
	calls int
	last  llm.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply, Model: "test-model", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (f *fakeChat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not supported")
}

const testContext = "【1】Code — Article 1 (seg:art.1)\nFoo." +
	"\n\n------------------------------------------------------------\n\n" +
	"【2】Code — Article 2 (seg:art.2)\nBar. Voir 【1】."

func TestComposeKeepsValidMarkers(t *testing.T) {
	chat := &fakeChat{reply: "L'article 2 renvoie à l'article 1 【2】【1】."}
	ans, err := New(chat, Config{Model: "m"}, Rules{}).Compose(context.Background(), "Que dit l'article 2 ?", testContext)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, ans.Status)
	assert.Equal(t, []int{2, 1}, ans.Markers)
	assert.Empty(t, ans.InvalidMarkers)
	assert.False(t, ans.Repaired)
	assert.Equal(t, 1.0, ans.Confidence)
	assert.Equal(t, "test-model", ans.ModelUsed)
	assert.Equal(t, 15, ans.TotalTokens)

	require.Len(t, chat.last.Messages, 2)
	assert.Equal(t, "m", chat.last.Model)
	assert.Contains(t, chat.last.Messages[0].Content, "【1】")
	assert.Contains(t, chat.last.Messages[0].Content, NotCovered)
	assert.True(t, strings.HasSuffix(chat.last.Messages[1].Content, "Question : Que dit l'article 2 ?"))
}

func TestComposeReportsInvalidMarkers(t *testing.T) {
	chat := &fakeChat{reply: "Réponse 【1】 et 【7】."}
	ans, err := New(chat, Config{}, Rules{}).Compose(context.Background(), "q", testContext)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ans.Markers)
	assert.Equal(t, []int{7}, ans.InvalidMarkers)
	assert.False(t, ans.Repaired)
	assert.Less(t, ans.Confidence, 1.0)
}

func TestComposeRepairsMissingMarkers(t *testing.T) {
	chat := &fakeChat{reply: "L'article 2 renvoie à l'article 1."}
	ans, err := New(chat, Config{}, Rules{}).Compose(context.Background(), "q", testContext)
	require.NoError(t, err)

	if !ans.Repaired {
		t.Fatal("expected Repaired")
	}
	if !strings.HasSuffix(ans.Text, "\n\nSources : 【1】, 【2】") {
		t.Errorf("text = %q", ans.Text)
	}
	assert.Equal(t, []int{1, 2}, ans.Markers)
}

func TestComposeNotCovered(t *testing.T) {
	chat := &fakeChat{reply: NotCovered}
	ans, err := New(chat, Config{}, Rules{}).Compose(context.Background(), "q", testContext)
	require.NoError(t, err)
	assert.Equal(t, StatusNotCovered, ans.Status)
	assert.False(t, ans.Repaired)
	assert.Equal(t, NotCovered, ans.Text)
}

func TestComposeEmptyContext(t *testing.T) {
	chat := &fakeChat{reply: "unused"}
	ans, err := New(chat, Config{}, Rules{}).Compose(context.Background(), "q", "  ")
	require.NoError(t, err)
	assert.Equal(t, StatusNoContext, ans.Status)
	assert.Equal(t, NotCovered, ans.Text)
	assert.Zero(t, chat.calls)
}

func TestComposeProviderFailure(t *testing.T) {
	chat := &fakeChat{err: errors.New("502 bad gateway")}
	_, err := New(chat, Config{}, Rules{}).Compose(context.Background(), "q", testContext)
	if !errors.Is(err, ErrCompletion) {
		t.Fatalf("err = %v, want ErrCompletion", err)
	}

	_, err = New(nil, Config{}, Rules{}).Compose(context.Background(), "q", testContext)
	if !errors.Is(err, ErrCompletion) {
		t.Fatalf("nil provider err = %v, want ErrCompletion", err)
	}
}

func TestContextMarkersIgnoreInlineMarkers(t *testing.T) {
	// Block 2 quotes 【1】 inline; only block heads count.
	assert.Equal(t, []int{1, 2}, ContextMarkers(testContext))
	assert.Equal(t, []int{}, ContextMarkers(""))
}

func TestCitedMarkers(t *testing.T) {
	assert.Equal(t, []int{3, 1}, CitedMarkers("a 【3】 b 【1】 c 【3】"))
	assert.Empty(t, CitedMarkers("aucun marqueur [1]"))
}

func TestValidateExternalKnowledge(t *testing.T) {
	v := validate("À ma connaissance, la règle s'applique 【1】.", []int{1})
	require.Len(t, v.issues, 1)
	assert.InDelta(t, 0.85, v.confidence(), 1e-9)
}

func TestRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "rules:\n  - Citez l'article exact.\n  - \"  \"\nstyle: concis\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "Règles supplémentaires :\n- Citez l'article exact.\n- Style : concis", r.Text())

	c := New(&fakeChat{}, Config{}, r)
	assert.True(t, strings.HasSuffix(c.SystemPrompt(), r.Text()))
	assert.Equal(t, systemPrompt, New(nil, Config{}, Rules{}).SystemPrompt())
}

func TestLoadRulesMissingAndInvalid(t *testing.T) {
	r, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, r.Text())

	r, err = LoadRules("")
	require.NoError(t, err)
	assert.Empty(t, r.Text())

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules: [unclosed"), 0o644))
	_, err = LoadRules(bad)
	assert.Error(t, err)
}
