package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/kubesage/kubesage/api"
	"github.com/kubesage/kubesage/internal/assist"
	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/document"
	"github.com/kubesage/kubesage/internal/embedding"
	"github.com/kubesage/kubesage/internal/knowledge"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/log"
	"github.com/kubesage/kubesage/internal/observability"
	"github.com/kubesage/kubesage/internal/tools"
	"github.com/kubesage/kubesage/internal/vectorstore"
)

// runServe wires the full service graph and runs the HTTP server until
// SIGINT or SIGTERM.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger.Info("configuration loaded",
		"provider", cfg.Provider,
		"model", cfg.ModelName,
		"vector_store", cfg.VectorStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Tracing.Endpoint,
			Environment: cfg.Tracing.Environment,
			ServiceName: cfg.Tracing.ServiceName,
		}, logger)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	store, closeStore, err := vectorstore.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connecting vector store: %w", err)
	}
	defer closeStore()

	embedder, err := embedding.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}

	provider, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating model provider: %w", err)
	}

	manager := tools.NewManager(ctx, cfg.MCPServers, logger)
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn("closing tool sessions", "error", err)
		}
	}()
	logger.Info("tool servers connected",
		"configured", len(cfg.MCPServers),
		"connected", manager.ConnectedCount())

	processor, err := tools.NewProcessor(provider, manager, logger)
	if err != nil {
		return fmt.Errorf("creating query processor: %w", err)
	}

	documents, err := document.NewService(store, embedder, logger)
	if err != nil {
		return fmt.Errorf("creating document service: %w", err)
	}

	retriever, err := knowledge.NewService(store, embedder, logger)
	if err != nil {
		return fmt.Errorf("creating knowledge service: %w", err)
	}

	chat, err := assist.NewChatService(provider, retriever, processor, logger)
	if err != nil {
		return fmt.Errorf("creating chat service: %w", err)
	}
	logs, err := assist.NewLogService(processor, logger)
	if err != nil {
		return fmt.Errorf("creating log service: %w", err)
	}
	yamlGen, err := assist.NewYAMLService(provider, retriever, logger)
	if err != nil {
		return fmt.Errorf("creating yaml service: %w", err)
	}

	settings := document.ChunkSettings{
		MaxChunkLength: cfg.MaxChunkLength,
		ChunkOverlap:   cfg.ChunkOverlap,
	}
	server := api.NewServer(
		api.NewHealthHandler(store, logger),
		api.NewDocumentsHandler(documents, settings, cfg.Namespace, logger),
		api.NewAssistHandler(chat, logs, yamlGen, retriever, logger),
		cfg.CORSOrigins,
		logger,
	)
	return server.Run(ctx, cfg.ListenAddr)
}
