package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/vivon-labs/vivon/sui-assistant/internal/fallback"
	"github.com/vivon-labs/vivon/sui-assistant/internal/graph"
	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
	"github.com/vivon-labs/vivon/sui-assistant/internal/processing"
	"github.com/vivon-labs/vivon/sui-assistant/internal/retrieval"
	"github.com/vivon-labs/vivon/sui-assistant/internal/server"
	"github.com/vivon-labs/vivon/sui-assistant/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API",
	Long: `Serves POST /api/chat/sui_assistant and POST /api/chat/vivon_assistant,
plus /health and /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// assistantDef pairs a URL name with its retriever and service name.
type assistantDef struct {
	name      string
	service   string
	retriever retrieval.Config
}

var assistantDefs = []assistantDef{
	{name: "sui_assistant", service: "sui_blockchain_assistant", retriever: retrieval.SuiDocs},
	{name: "vivon_assistant", service: "vivon_platform_assistant", retriever: retrieval.VivonPlatform},
}

// backend holds the shared clients of the production assistants.
type backend struct {
	db         *storage.VectorDB
	redis      *redis.Client
	redisCache *retrieval.RedisCache
	cache      retrieval.Cache
	embedder   *processing.Embedder
	model      *llm.Client
}

func (b *backend) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
}

func newEmbedder() *processing.Embedder {
	return processing.NewEmbedder(processing.EmbedderConfig{
		Provider:    cfg.Embedding.Provider,
		Endpoint:    cfg.Embedding.Endpoint,
		APIKey:      cfg.Embedding.APIKey,
		Model:       cfg.Embedding.Model,
		Dims:        cfg.Embedding.Dims,
		Concurrency: cfg.Embedding.Concurrency,
	})
}

func openBackend(ctx context.Context) (*backend, error) {
	db, err := storage.Open(ctx, cfg.Retriever.DatabaseURL)
	if err != nil {
		return nil, err
	}
	b := &backend{
		db:       db,
		embedder: newEmbedder(),
		model:    llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Timeout),
	}

	if cfg.Retriever.RedisURL != "" {
		client, err := retrieval.NewRedisClient(cfg.Retriever.RedisURL, cfg.Retriever.RedisPassword, cfg.Retriever.RedisDB)
		if err != nil {
			db.Close()
			return nil, err
		}
		b.redis = client
		cache := retrieval.NewRedisCache(client, cfg.Retriever.CacheTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Redis, continuing without cache")
		} else {
			logger.Info().Msg("Connected to Redis")
		}
		cancel()
		b.redisCache = cache
		b.cache = cache
	}
	return b, nil
}

func buildAssistants(ctx context.Context) (map[string]server.Assistant, map[string]server.HealthCheck, func(), error) {
	assistants := make(map[string]server.Assistant, len(assistantDefs))
	checks := map[string]server.HealthCheck{}

	if !cfg.HasCredentials() {
		logger.Warn().Msg("Missing LLM API key or document store URL, serving development fallback answers")
		for _, def := range assistantDefs {
			assistants[def.name] = fallback.NewAssistant(def.service, cfg.Server.FallbackDelay)
		}
		return assistants, checks, func() {}, nil
	}

	b, err := openBackend(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	checks["database"] = b.db.Ping
	if b.redis != nil {
		checks["redis"] = b.redisCache.Ping
	}

	opts := graph.Options{
		Model:          cfg.LLM.Model,
		RecursionLimit: cfg.Workflow.RecursionLimit,
		Debug:          cfg.Workflow.Debug,
		SkipGrading:    cfg.Workflow.SkipGrading,
	}
	for _, def := range assistantDefs {
		r := retrieval.New(def.retriever, b.db, b.embedder, b.cache, logger)
		wf := graph.NewWorkflow(opts, b.model, r, logger).WithObserver(server.NodeMetrics{})
		assistants[def.name] = server.NewWorkflowAssistant(def.service, wf)
	}
	return assistants, checks, b.Close, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	assistants, checks, cleanup, err := buildAssistants(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(server.Options{Debug: cfg.Workflow.Debug, Checks: checks}, assistants, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("mode", cfg.Mode()).Msg("Assistant starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("Server exited")
	return nil
}
