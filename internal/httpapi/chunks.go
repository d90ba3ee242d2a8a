package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdocs/ragserver/internal/chunking"
)

func (s *Server) listChunks(c *gin.Context) {
	chunks, err := s.store.GetChunks(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load chunks", err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"chunks": chunks})
}

func (s *Server) chunkStats(c *gin.Context) {
	stats, err := s.store.GetChunkStats(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to compute chunk stats", err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"stats": stats})
}

type appendChunksRequest struct {
	Chunks []chunking.Chunk `json:"chunks"`
}

func (s *Server) appendChunks(c *gin.Context) {
	var req appendChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	documentID := c.Param("id")
	for i := range req.Chunks {
		req.Chunks[i].DocumentID = documentID
	}

	created, err := s.store.CreateChunks(req.Chunks)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to append chunks", err.Error())
		return
	}
	ok(c, http.StatusCreated, gin.H{"chunks": created})
}

type setEmbeddingRequest struct {
	Embedding []float32 `json:"embedding"`
}

func (s *Server) setChunkEmbedding(c *gin.Context) {
	var req setEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	found, err := s.store.UpdateChunkEmbedding(c.Param("id"), req.Embedding)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to set embedding", err.Error())
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "chunk not found", "")
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": true})
}

// listAllChunks is the heavy "all chunks across all documents" endpoint
// the spec explicitly flags as expensive; it is provided for completeness
// but callers are expected to prefer per-document listing.
func (s *Server) listAllChunks(c *gin.Context) {
	docs, err := s.store.ListDocuments()
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to list documents", err.Error())
		return
	}

	var all []interface{}
	for _, doc := range docs {
		chunks, err := s.store.GetChunks(doc.ID)
		if err != nil {
			fail(c, http.StatusInternalServerError, "failed to load chunks", err.Error())
			return
		}
		for _, ch := range chunks {
			all = append(all, ch)
		}
	}
	ok(c, http.StatusOK, gin.H{"chunks": all})
}
