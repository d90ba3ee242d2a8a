package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultSearchLimit = 10

func (s *Server) searchChunks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		fail(c, http.StatusBadRequest, "missing query parameter q", "")
		return
	}
	limit := parseLimit(c.Query("limit"))

	results, err := s.searcher.Search(c.Request.Context(), query, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "search failed", err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"results": results})
}

type vectorSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) vectorSearchChunks(c *gin.Context) {
	var req vectorSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Query == "" {
		fail(c, http.StatusBadRequest, "missing query", "")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.searcher.VectorSearch(c.Request.Context(), req.Query, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "vector search failed", err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"results": results})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultSearchLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultSearchLimit
	}
	return n
}
