// Package main provides the code explainer server: the HTTP API and the MCP
// endpoint over one knowledge base.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/code-explainer/internal/api"
	"github.com/bull/code-explainer/internal/config"
	"github.com/bull/code-explainer/internal/embedding"
	"github.com/bull/code-explainer/internal/explain"
	mcpserver "github.com/bull/code-explainer/internal/mcp"
	"github.com/bull/code-explainer/internal/storage"
	"github.com/bull/code-explainer/internal/vectorindex"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := cfg.NewLogger()

	embedder, err := embedding.New(cfg.EmbedderModel)
	if err != nil {
		log.Fatalf("failed to create embedder: %v", err)
	}

	opts := []vectorindex.Option{vectorindex.WithLogger(logger)}

	// The mirror interfaces must stay nil when Qdrant is not configured.
	var mirror mcpserver.HealthChecker
	if cfg.MirrorEnabled() {
		store, err := storage.NewQdrantStorage(cfg.Qdrant.Host, cfg.Qdrant.Port)
		if err != nil {
			log.Fatalf("failed to connect to Qdrant: %v", err)
		}
		defer store.Close()

		if err := store.EnsureCollection(ctx, embedder.Dimension()); err != nil {
			log.Fatalf("failed to ensure collection: %v", err)
		}
		opts = append(opts, vectorindex.WithMirror(store))
		mirror = store
	}

	index := vectorindex.New(cfg.DataPath, embedder, opts...)
	engine := explain.NewEngine(index, logger)
	if err := engine.Load(ctx); err != nil {
		log.Fatalf("failed to load knowledge base %s: %v", cfg.DataPath, err)
	}
	logger.Info("Knowledge base loaded", "path", cfg.DataPath, "examples", index.Len(), "model", index.Model())

	server := mcpserver.NewServer(&mcpserver.Config{
		Engine:   engine,
		Searcher: index,
		Mirror:   mirror,
	})

	apiServer := api.NewServer(engine, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
	})
	apiServer.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))
	apiServer.Handle("GET /health/mirror", mcpserver.NewMirrorHealthHandler(mirror))
	apiServer.Handle("GET /{$}", mcpserver.NewLandingHandler())

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.ServerMode {
		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			_ = httpServer.Shutdown(shutdownCtx)
		}()

		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode keeps the HTTP API up in the background for local testing.
	go func() {
		logger.Info("Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	logger.Info("Starting Code Explainer MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
