// Package app wires the whole server together with fx: configuration,
// logging, the shard store, provider clients, the embedding queue, the
// orchestrator, the searcher, and finally the HTTP server's lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/netdocs/ragserver/internal/clients/base"
	"github.com/netdocs/ragserver/internal/clients/embedding"
	"github.com/netdocs/ragserver/internal/clients/openai"
	"github.com/netdocs/ragserver/internal/clients/rerank"
	"github.com/netdocs/ragserver/internal/config"
	"github.com/netdocs/ragserver/internal/httpapi"
	applogger "github.com/netdocs/ragserver/internal/logger"
	"github.com/netdocs/ragserver/internal/orchestrator"
	"github.com/netdocs/ragserver/internal/queue"
	"github.com/netdocs/ragserver/internal/search"
	"github.com/netdocs/ragserver/internal/store"
)

// InfrastructureModule provides configuration, logging, and the shard
// store — the pieces every other layer depends on.
var InfrastructureModule = fx.Module("infrastructure",
	fx.Provide(
		provideConfig,
		provideLogger,
		provideStore,
	),
)

// ClientsModule provides the outbound HTTP clients for the embedding,
// chat, and rerank providers.
var ClientsModule = fx.Module("clients",
	fx.Provide(
		provideEmbeddingClient,
		provideChatClient,
		provideRerankClient,
	),
)

// ServicesModule provides the domain services: the embedding task queue,
// the upload orchestrator, and the hybrid searcher.
var ServicesModule = fx.Module("services",
	fx.Provide(
		provideQueue,
		provideOrchestrator,
		provideSearcher,
		provideSettings,
	),
)

// HTTPServerModule provides the gin-backed httpapi.Server and registers
// its lifecycle hooks against fx.
var HTTPServerModule = fx.Module("httpserver",
	fx.Provide(provideHTTPServer),
	fx.Invoke(registerHTTPLifecycle),
)

func provideConfig() (*config.Config, error) {
	return config.LoadConfig(".")
}

func provideLogger(cfg *config.Config) (*slog.Logger, error) {
	if err := applogger.Init(); err != nil {
		return nil, err
	}
	return applogger.Get(), nil
}

func provideStore(cfg *config.Config, logger *slog.Logger) *store.Store {
	return store.New(cfg.Store.DataDir, cfg.Store.CacheSize, time.Duration(cfg.Store.CacheTTL)*time.Second, logger)
}

func provideEmbeddingClient(cfg *config.Config) embedding.Embedder {
	return embedding.NewClient(cfg.Services.Embedding)
}

func provideChatClient(cfg *config.Config) openai.ChatCompleter {
	return openai.NewClient(cfg.Services.Chat)
}

func provideRerankClient(cfg *config.Config) rerank.Reranker {
	return rerank.NewClient(cfg.Services.Reranker)
}

func provideQueue(cfg *config.Config, st *store.Store, embedder embedding.Embedder, logger *slog.Logger) *queue.Manager {
	return queue.New(st, embedder, cfg.Queue, logger)
}

func provideOrchestrator(cfg *config.Config, st *store.Store, qm *queue.Manager, logger *slog.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(st, qm, orchestrator.PlainTextExtractor{}, cfg.Chunking, logger)
}

func provideSearcher(st *store.Store, embedder embedding.Embedder, reranker rerank.Reranker, logger *slog.Logger) *search.Searcher {
	return search.NewSearcher(st, embedder, logger).WithReranker(reranker)
}

func provideSettings(cfg *config.Config) *httpapi.Settings {
	return httpapi.NewSettings(map[string]string{
		"embedding": cfg.Services.Embedding.APIKey,
		"chat":      cfg.Services.Chat.APIKey,
		"reranker":  cfg.Services.Reranker.APIKey,
	})
}

func provideHTTPServer(
	st *store.Store,
	qm *queue.Manager,
	orch *orchestrator.Orchestrator,
	searcher *search.Searcher,
	settings *httpapi.Settings,
	logger *slog.Logger,
) *httpapi.Server {
	return httpapi.New(st, qm, orch, searcher, settings, logger)
}

func registerHTTPLifecycle(lc fx.Lifecycle, cfg *config.Config, srv *httpapi.Server, qm *queue.Manager, logger *slog.Logger) {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", httpServer.Addr, err)
			}
			go func() {
				if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("http server stopped unexpectedly", "error", err)
				}
			}()
			go qm.Recover(context.Background())
			logger.Info("server listening", "addr", httpServer.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
