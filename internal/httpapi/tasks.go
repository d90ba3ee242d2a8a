package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdocs/ragserver/internal/chunking"
)

func (s *Server) generateEmbeddings(c *gin.Context) {
	documentID := c.Param("id")

	chunks, err := s.store.GetChunks(documentID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load chunks", err.Error())
		return
	}

	var childIDs []string
	for _, ch := range chunks {
		if ch.ChunkType == chunking.ChunkTypeChild && !ch.HasEmbedding() {
			childIDs = append(childIDs, ch.ID)
		}
	}

	task := s.queue.Enqueue(context.WithoutCancel(c.Request.Context()), documentID, childIDs)
	ok(c, http.StatusAccepted, gin.H{"task": task})
}

func (s *Server) getTask(c *gin.Context) {
	task := s.queue.GetTask(c.Param("id"))
	if task == nil {
		fail(c, http.StatusNotFound, "task not found", "")
		return
	}
	ok(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) listDocumentTasks(c *gin.Context) {
	tasks := s.queue.TasksForDocument(c.Param("id"))
	ok(c, http.StatusOK, gin.H{"tasks": tasks})
}
