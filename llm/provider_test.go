package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"ollama", "*llm.ollamaProvider"},
		{"openai", "*llm.openAIProvider"},
		{"custom", "*llm.openAICompatProvider"},
		{"lmstudio", "*llm.openAICompatProvider"},
		{"openrouter", "*llm.openAICompatProvider"},
		{"gemini", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			if got := fmt.Sprintf("%T", p); got != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, got, tt.wantType)
			}
		})
	}
}

func TestNewProviderErrors(t *testing.T) {
	_, err := NewProvider(Config{Provider: "doesnotexist"})
	require.EqualError(t, err, "unknown llm provider: doesnotexist")

	_, err = NewProvider(Config{Provider: ""})
	require.EqualError(t, err, "llm provider not specified")
}

func baseOf(t *testing.T, p Provider) openAICompatClient {
	t.Helper()
	switch v := p.(type) {
	case *openAICompatProvider:
		return v.base
	case *openAIProvider:
		return v.base
	case *ollamaProvider:
		return v.base
	}
	t.Fatalf("%T has no base client", p)
	return openAICompatClient{}
}

func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider   string
		wantURL    string
		wantPrefix string
	}{
		{"ollama", "http://localhost:11434", "/v1"},
		{"openai", "https://api.openai.com", "/v1"},
		{"lmstudio", "http://localhost:1234", "/v1"},
		{"openrouter", "https://openrouter.ai/api", "/v1"},
		{"xai", "https://api.x.ai", "/v1"},
		{"gemini", "https://generativelanguage.googleapis.com/v1beta/openai", ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "m"})
			require.NoError(t, err)
			base := baseOf(t, p)
			assert.Equal(t, tt.wantURL, base.cfg.BaseURL)
			assert.Equal(t, tt.wantPrefix, base.pathPrefix)
		})
	}
}

func TestExplicitBaseURLPreserved(t *testing.T) {
	for _, provider := range []string{"ollama", "openai", "lmstudio", "custom"} {
		t.Run(provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: provider, Model: "m", BaseURL: "http://my-server:9999", APIKey: "sk-1"})
			require.NoError(t, err)
			base := baseOf(t, p)
			assert.Equal(t, "http://my-server:9999", base.cfg.BaseURL)
			assert.Equal(t, "sk-1", base.cfg.APIKey)
		})
	}
}

func TestCustomProviderNoDefaultURL(t *testing.T) {
	p, err := NewProvider(Config{Provider: "custom", Model: "m"})
	require.NoError(t, err)
	assert.Empty(t, baseOf(t, p).cfg.BaseURL)
}

func TestNewProviderWrapsRateLimit(t *testing.T) {
	p, err := NewProvider(Config{Provider: "custom", Model: "m", RequestsPerMinute: 60})
	require.NoError(t, err)
	assert.IsType(t, &rateLimited{}, p)
}

func fastClient(url string) openAICompatClient {
	c := newOpenAICompatClient(Config{BaseURL: url, Model: "m", APIKey: "k"})
	c.retry = retryPolicy{maxRetries: 3, baseDelay: time.Millisecond, rateLimitDelay: time.Millisecond}
	return c
}

func chatReply(content string) string {
	return `{"model":"m","choices":[{"message":{"content":"` + content + `"},"finish_reason":"stop"}],` +
		`"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`
}

func TestChatRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"slow down"}`)
			return
		}
		fmt.Fprint(w, chatReply("bonjour"))
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	resp, err := c.chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", resp.Content)
	assert.Equal(t, 5, resp.TotalTokens)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	_, err := c.chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(4), calls.Load())
}

func TestChatDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad model")
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	_, err := c.chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryDelay(t *testing.T) {
	p := retryPolicy{baseDelay: 100 * time.Millisecond, rateLimitDelay: time.Second}
	limited := &APIError{StatusCode: http.StatusTooManyRequests}
	unavailable := &APIError{StatusCode: http.StatusServiceUnavailable}
	h := http.Header{}

	assert.Equal(t, 400*time.Millisecond, p.delay(3, unavailable, h))
	assert.Equal(t, 4*time.Second, p.delay(3, limited, h))
	h.Set("Retry-After", "30")
	assert.Equal(t, 30*time.Second, p.delay(3, limited, h))
	// Retry-After only applies to rate limiting.
	assert.Equal(t, 400*time.Millisecond, p.delay(3, unavailable, h))
}

func TestAPIErrorBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, strings.Repeat("x", 10*maxErrorBody))
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	_, err := c.chat(context.Background(), ChatRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Len(t, apiErr.Body, maxErrorBody)
}

func TestEmbedReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`)
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	vecs, err := c.embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestEmbedMissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,0]}]}`)
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	_, err := c.embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		fmt.Fprint(w, `{"embeddings":[[0.5,0.25]]}`)
	}))
	defer srv.Close()

	p := NewOllama(Config{BaseURL: srv.URL, Model: "nomic"})
	vecs, err := p.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.25}}, vecs)
}

func TestOpenAIEmbedSplitsOversizedRequests(t *testing.T) {
	var sizes []int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		sizes = append(sizes, len(req.Input))
		mu.Unlock()
		var data []string
		for i, in := range req.Input {
			data = append(data, fmt.Sprintf(`{"index":%d,"embedding":[%d]}`, i, len(in)))
		}
		fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(data, ","))
	}))
	defer srv.Close()

	p := NewOpenAI(Config{BaseURL: srv.URL, Model: "text-embedding-3-small", APIKey: "k"}).(*openAIProvider)
	p.batch = 2
	vecs, err := p.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}, {4}, {5}}, vecs)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

// fakeEmbedder returns one vector per text whose only component is the
// text length, and records the batch sizes it saw.
type fakeEmbedder struct {
	mu      sync.Mutex
	batches []int
	fail    bool
}

func (f *fakeEmbedder) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: "ok"}, nil
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(texts))
	f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("boom")
	}
	out := make([][]float32, len(texts))
	for i, s := range texts {
		out[i] = []float32{float32(len(s))}
	}
	return out, nil
}

func TestEmbedBatchedPreservesOrder(t *testing.T) {
	texts := make([]string, 70)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}
	f := &fakeEmbedder{}
	vecs, err := EmbedBatched(context.Background(), f, texts, 32, 3)
	require.NoError(t, err)
	require.Len(t, vecs, 70)
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Fatalf("vector %d = %v, want %d", i, v, i+1)
		}
	}
	assert.ElementsMatch(t, []int{32, 32, 6}, f.batches)
}

func TestEmbedBatchedError(t *testing.T) {
	_, err := EmbedBatched(context.Background(), &fakeEmbedder{fail: true}, []string{"a"}, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEmbedBatchedEmpty(t *testing.T) {
	vecs, err := EmbedBatched(context.Background(), &fakeEmbedder{}, nil, 32, 2)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestWithRateLimit(t *testing.T) {
	f := &fakeEmbedder{}
	assert.Same(t, Provider(f), WithRateLimit(f, 0))

	// 600 rpm is one call per 100ms; the first is immediate.
	p := WithRateLimit(f, 600)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.Embed(context.Background(), []string{"a"})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Chat(ctx, ChatRequest{})
	assert.Error(t, err)
}
