package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdocs/ragserver/internal/orchestrator"
	"github.com/netdocs/ragserver/internal/queue"
	"github.com/netdocs/ragserver/internal/search"
	"github.com/netdocs/ragserver/internal/store"
)

// maxMultipartMemory is gin's in-memory threshold for multipart bodies
// (50 MB); larger parts spill to temporary files. No request body, multipart
// or JSON, is otherwise size-limited.
const maxMultipartMemory = 50 << 20

// Server bundles the dependencies every handler needs and owns the gin
// engine's route table.
type Server struct {
	engine       *gin.Engine
	store        *store.Store
	queue        *queue.Manager
	orchestrator *orchestrator.Orchestrator
	searcher     *search.Searcher
	settings     *Settings
	logger       *slog.Logger
}

// New builds a Server with routes registered but not yet listening.
func New(
	st *store.Store,
	qm *queue.Manager,
	orch *orchestrator.Orchestrator,
	searcher *search.Searcher,
	settings *Settings,
	logger *slog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	engine.MaxMultipartMemory = maxMultipartMemory

	s := &Server{
		engine:       engine,
		store:        st,
		queue:        qm,
		orchestrator: orch,
		searcher:     searcher,
		settings:     settings,
		logger:       logger,
	}
	s.routes()
	return s
}

// Handler returns the underlying http.Handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.POST("/documents/upload", s.uploadDocument)
	api.GET("/documents", s.listDocuments)
	api.GET("/documents/:id", s.getDocument)
	api.PUT("/documents/:id", s.updateDocument)
	api.DELETE("/documents/:id", s.deleteDocument)

	api.GET("/documents/:id/chunks", s.listChunks)
	api.GET("/documents/:id/chunk-stats", s.chunkStats)
	api.POST("/documents/:id/chunks", s.appendChunks)

	api.PUT("/chunks/:id/embedding", s.setChunkEmbedding)
	api.GET("/chunks/search", s.searchChunks)
	api.POST("/chunks/vector-search", s.vectorSearchChunks)
	api.GET("/chunks", s.listAllChunks)

	api.POST("/documents/:id/generate-embeddings", s.generateEmbeddings)
	api.GET("/tasks/:id", s.getTask)
	api.GET("/documents/:id/tasks", s.listDocumentTasks)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.updateSettings)
}

// requestLogger mirrors the teacher's structured-access-log middleware,
// rewritten against slog instead of zap.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
