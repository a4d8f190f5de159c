package lexgraph

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/lexgraph/answer"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/llm"
	"github.com/brunobiangulo/lexgraph/retrieval"
)

// Retrieval modes for Ask.
const (
	ModeGraph = "graph"
	ModeFlat  = "flat"
)

// DefaultRequestTimeout bounds Ask and the retrievers.
const DefaultRequestTimeout = 2 * time.Minute

// Config holds all configuration for the lexgraph engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.lexgraph/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set: "home" (default) uses ~/.lexgraph/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers
	Chat      llm.Config `json:"chat" yaml:"chat"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// EmbeddingDim must match the embedding model.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	Retrieval  RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Classifier classify.Config `json:"classifier" yaml:"classifier"`
	Answer     AnswerConfig    `json:"answer" yaml:"answer"`
	Registry   RegistryConfig  `json:"registry" yaml:"registry"`
	Server     ServerConfig    `json:"server" yaml:"server"`

	// RequestTimeout bounds Ask, RetrieveGraph and RetrieveFlat.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// RetrievalConfig holds retrieval defaults applied when a request leaves a
// field at zero.
type RetrievalConfig struct {
	// Mode is the Ask retrieval mode: "graph" (default) or "flat".
	Mode               string  `json:"mode" yaml:"mode"`
	MaxSegments        int     `json:"max_segments" yaml:"max_segments"`
	ExpandHops         int     `json:"expand_hops" yaml:"expand_hops"`
	MaxCharsPerSegment int     `json:"max_chars_per_segment" yaml:"max_chars_per_segment"`
	TopN               int     `json:"top_n" yaml:"top_n"`
	WeightVector       float64 `json:"weight_vector" yaml:"weight_vector"`
	WeightFTS          float64 `json:"weight_fts" yaml:"weight_fts"`
	EmbedBatchSize     int     `json:"embed_batch_size" yaml:"embed_batch_size"`
	EmbedConcurrency   int     `json:"embed_concurrency" yaml:"embed_concurrency"`
}

// Validate validates the retrieval configuration.
func (c RetrievalConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.In(ModeGraph, ModeFlat)),
		validation.Field(&c.MaxSegments, validation.Min(0)),
		validation.Field(&c.MaxCharsPerSegment, validation.Min(0)),
		validation.Field(&c.TopN, validation.Min(0)),
		validation.Field(&c.WeightVector, validation.Min(0.0)),
		validation.Field(&c.WeightFTS, validation.Min(0.0)),
		validation.Field(&c.EmbedBatchSize, validation.Min(0)),
		validation.Field(&c.EmbedConcurrency, validation.Min(0)),
	)
}

func (c RetrievalConfig) engineConfig() retrieval.Config {
	return retrieval.Config{
		WeightVector:     c.WeightVector,
		WeightFTS:        c.WeightFTS,
		EmbedBatchSize:   c.EmbedBatchSize,
		EmbedConcurrency: c.EmbedConcurrency,
	}
}

// AnswerConfig configures the answer composer.
type AnswerConfig struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	// RulesPath is an optional YAML file of extra prompt rules.
	RulesPath string `json:"rules_path" yaml:"rules_path"`
}

// Validate validates the answer configuration.
func (c AnswerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxTokens, validation.Min(0)),
	)
}

func (c AnswerConfig) composerConfig(model string) answer.Config {
	return answer.Config{Model: model, Temperature: c.Temperature, MaxTokens: c.MaxTokens}
}

// RegistryConfig locates the entity registry file.
type RegistryConfig struct {
	Path string `json:"path" yaml:"path"`
	// Watch reloads the registry when the file changes.
	Watch bool `json:"watch" yaml:"watch"`
}

// ServerConfig is read by cmd/server only.
type ServerConfig struct {
	Addr      string     `json:"addr" yaml:"addr"`
	AuthToken string     `json:"-" yaml:"auth_token"`
	UploadDir string     `json:"upload_dir" yaml:"upload_dir"`
	MaxUpload int64      `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	LogLevel  slog.Level `json:"log_level" yaml:"log_level"`
}

// Validate validates the server configuration.
func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.UploadDir, validation.Required),
		validation.Field(&c.MaxUpload, validation.Required, validation.Min(int64(1))),
	)
}

// DefaultConfig returns a Config with defaults for local inference.
// The database is stored in ~/.lexgraph/lexgraph.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "lexgraph",
		StorageDir: "home",
		Chat: llm.Config{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: llm.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim: 768,
		Retrieval: RetrievalConfig{
			Mode:               ModeGraph,
			MaxSegments:        retrieval.DefaultMaxSegments,
			ExpandHops:         retrieval.DefaultExpandHops,
			MaxCharsPerSegment: retrieval.DefaultMaxCharsPerSegment,
			TopN:               retrieval.DefaultTopN,
			WeightVector:       1.0,
			WeightFTS:          1.0,
			EmbedBatchSize:     llm.DefaultEmbedBatchSize,
			EmbedConcurrency:   llm.DefaultEmbedConcurrency,
		},
		Classifier: classify.DefaultConfig(),
		Answer: AnswerConfig{
			Temperature: 0.1,
			MaxTokens:   1200,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			UploadDir: "uploads",
			MaxUpload: 50 << 20,
			LogLevel:  slog.LevelInfo,
		},
		RequestTimeout: DefaultRequestTimeout,
	}
}

// LoadConfig reads a YAML config file over DefaultConfig. ${VAR} references
// are expanded from the environment before parsing. An empty path returns
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every sub-config. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.EmbeddingDim, validation.Required, validation.Min(1)),
		validation.Field(&c.StorageDir, validation.In("home", "local", "cwd")),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Retrieval),
		validation.Field(&c.Answer),
		validation.Field(&c.Server),
	); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := validateLLM("chat", c.Chat); err != nil {
		return err
	}
	return validateLLM("embedding", c.Embedding)
}

func validateLLM(name string, c llm.Config) error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.RequestsPerMinute, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "lexgraph"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".lexgraph", name+".db")
	}
}
