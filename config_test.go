package lexgraph

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	assert.Equal(t, ModeGraph, cfg.Retrieval.Mode)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	t.Setenv("LEXGRAPH_TEST_KEY", "sk-test")
	path := writeConfig(t, `
db_path: /tmp/lex.db
chat:
  provider: openai
  model: gpt-4o-mini
  api_key: ${LEXGRAPH_TEST_KEY}
  requests_per_minute: 60
retrieval:
  mode: flat
  top_n: 7
registry:
  path: config/entities.yaml
  watch: true
server:
  log_level: debug
request_timeout: 30s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Chat.Provider)
	assert.Equal(t, "sk-test", cfg.Chat.APIKey)
	assert.Equal(t, 60, cfg.Chat.RequestsPerMinute)
	assert.Equal(t, ModeFlat, cfg.Retrieval.Mode)
	assert.Equal(t, 7, cfg.Retrieval.TopN)
	assert.True(t, cfg.Registry.Watch)
	assert.Equal(t, slog.LevelDebug, cfg.Server.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)

	// Untouched sections keep their defaults.
	assert.Equal(t, 768, cfg.EmbeddingDim)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 8, cfg.Retrieval.MaxSegments)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/tmp/lex.db", cfg.resolveDBPath())
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Chat, cfg.Chat)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown mode", "retrieval:\n  mode: semantic\n"},
		{"zero dim", "embedding_dim: 0\n"},
		{"no chat provider", "chat:\n  provider: \"\"\n"},
		{"negative top n", "retrieval:\n  top_n: -1\n"},
		{"temperature", "answer:\n  temperature: 3\n"},
		{"storage dir", "storage_dir: cloud\n"},
		{"bad yaml", "retrieval: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
}

func TestResolveDBPath(t *testing.T) {
	cfg := Config{DBName: "droit", StorageDir: "local"}
	assert.Equal(t, "droit.db", cfg.resolveDBPath())

	cfg = Config{StorageDir: "home"}
	got := cfg.resolveDBPath()
	if !strings.HasSuffix(got, filepath.Join(".lexgraph", "lexgraph.db")) {
		t.Errorf("resolveDBPath() = %q, want it under .lexgraph", got)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "config/entities.yaml", cfg.Registry.Path)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.Classifier.Thresholds["statute_regulation"])
}
