package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/lexgraph"
)

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	setupLogger(cfg.Server.LogLevel, false)

	slog.Info("server: configuration loaded",
		"addr", cfg.Server.Addr,
		"chat", cfg.Chat.Provider+"/"+cfg.Chat.Model,
		"embedding", cfg.Embedding.Provider+"/"+cfg.Embedding.Model,
		"retrieval_mode", cfg.Retrieval.Mode,
		"auth", cfg.Server.AuthToken != "",
		"log_level", cfg.Server.LogLevel.String())

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	engine, err := lexgraph.New(cfg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	h := newHandler(engine, cfg.Server.UploadDir, cfg.Server.MaxUpload)
	httpServer := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     newRouter(h, cfg.Server.AuthToken, cmd.String("cors-origins")),
		ReadTimeout: 30 * time.Second,
		// Ingestion of large files can outlive any fixed write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server: listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			slog.Info("server: shutdown signal", "signal", sig.String())
		case <-gCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server: shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server: stopped")
	return nil
}
