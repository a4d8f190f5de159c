// Command lexgraph serves the legal document engine over HTTP or MCP, and
// ingests documents from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/brunobiangulo/lexgraph"
	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/mcpserver"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "lexgraph",
		Usage:   "Legal document retrieval: classify, segment, link and answer with citations",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (YAML)",
				Sources: cli.EnvVars("LEXGRAPH_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Sources: cli.EnvVars("LEXGRAPH_ADDR"),
					},
					&cli.StringFlag{
						Name:    "cors-origins",
						Usage:   "Allowed CORS origins, comma separated",
						Sources: cli.EnvVars("LEXGRAPH_CORS_ORIGINS"),
					},
				},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: serveMCP,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest files into the store",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Re-parse files already ingested"},
					&cli.StringFlag{Name: "family", Usage: "Skip classification and segment as this family"},
				},
				Action: ingest,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("lexgraph: fatal", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, then applies LEXGRAPH_* overrides.
func loadConfig(cmd *cli.Command) (lexgraph.Config, error) {
	cfg, err := lexgraph.LoadConfig(cmd.String("config"))
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *lexgraph.Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"LEXGRAPH_DB_PATH", &cfg.DBPath},
		{"LEXGRAPH_CHAT_PROVIDER", &cfg.Chat.Provider},
		{"LEXGRAPH_CHAT_MODEL", &cfg.Chat.Model},
		{"LEXGRAPH_CHAT_BASE_URL", &cfg.Chat.BaseURL},
		{"LEXGRAPH_CHAT_API_KEY", &cfg.Chat.APIKey},
		{"LEXGRAPH_EMBED_PROVIDER", &cfg.Embedding.Provider},
		{"LEXGRAPH_EMBED_MODEL", &cfg.Embedding.Model},
		{"LEXGRAPH_EMBED_BASE_URL", &cfg.Embedding.BaseURL},
		{"LEXGRAPH_EMBED_API_KEY", &cfg.Embedding.APIKey},
		{"LEXGRAPH_REGISTRY_PATH", &cfg.Registry.Path},
		{"LEXGRAPH_RULES_PATH", &cfg.Answer.RulesPath},
		{"LEXGRAPH_AUTH_TOKEN", &cfg.Server.AuthToken},
		{"LEXGRAPH_UPLOAD_DIR", &cfg.Server.UploadDir},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}

	// Well-known provider keys as a last resort.
	for _, c := range []*struct{ provider, key *string }{
		{&cfg.Chat.Provider, &cfg.Chat.APIKey},
		{&cfg.Embedding.Provider, &cfg.Embedding.APIKey},
	} {
		if *c.key == "" && *c.provider == "openai" {
			*c.key = os.Getenv("OPENAI_API_KEY")
		}
	}
}

func setupLogger(level slog.Level, stderr bool) {
	out := os.Stdout
	if stderr {
		out = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})))
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	setupLogger(cfg.Server.LogLevel, true)

	engine, err := lexgraph.New(cfg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	slog.Info("mcp: serving on stdio", "version", version)
	return mcpserver.New(engine, version).ServeStdio()
}

func ingest(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("ingest: at least one file is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg.Server.LogLevel, true)

	var opts []lexgraph.IngestOption
	if cmd.Bool("force") {
		opts = append(opts, lexgraph.WithForceReparse())
	}
	if f := classify.Family(cmd.String("family")); f != "" {
		if !f.Valid() {
			return fmt.Errorf("ingest: unknown family %q", f)
		}
		opts = append(opts, lexgraph.WithFamily(f))
	}

	engine, err := lexgraph.New(cfg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	failed := 0
	for _, p := range paths {
		id, err := engine.Ingest(ctx, p, opts...)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			continue
		}
		fmt.Printf("%s\t%s\n", id, p)
	}
	if failed > 0 {
		return fmt.Errorf("ingest: %d of %d files failed", failed, len(paths))
	}
	return nil
}
