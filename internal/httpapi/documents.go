package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdocs/ragserver/internal/orchestrator"
	"github.com/netdocs/ragserver/internal/store"
)

func (s *Server) uploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "missing file field", err.Error())
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, "could not open uploaded file", err.Error())
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusInternalServerError, "could not read uploaded file", err.Error())
		return
	}

	userID := c.PostForm("userId")

	doc, err := s.orchestrator.Upload(c.Request.Context(), fileHeader.Filename, content, userID)
	if err != nil {
		if err == orchestrator.ErrUnsupportedFileType {
			fail(c, http.StatusBadRequest, "unsupported file type", "")
			return
		}
		fail(c, http.StatusInternalServerError, "upload failed", err.Error())
		return
	}

	if category := c.PostForm("category"); category != "" {
		updated, err := s.store.UpdateDocument(doc.ID, store.DocumentPatch{Category: &category})
		if err == nil && updated != nil {
			doc = *updated
		}
	}

	ok(c, http.StatusCreated, gin.H{"document": doc})
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := s.store.ListDocuments()
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to list documents", err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.store.GetDocument(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load document", err.Error())
		return
	}
	if doc == nil {
		fail(c, http.StatusNotFound, "document not found", "")
		return
	}
	ok(c, http.StatusOK, gin.H{"document": doc})
}

type updateDocumentRequest struct {
	Status         *string `json:"status"`
	Category       *string `json:"category"`
	ContentPreview *string `json:"contentPreview"`
	ErrorMessage   *string `json:"errorMessage"`
}

func (s *Server) updateDocument(c *gin.Context) {
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	patch := store.DocumentPatch{
		Category:       req.Category,
		ContentPreview: req.ContentPreview,
		ErrorMessage:   req.ErrorMessage,
	}
	if req.Status != nil {
		status := store.DocumentStatus(*req.Status)
		patch.Status = &status
	}

	doc, err := s.store.UpdateDocument(c.Param("id"), patch)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to update document", err.Error())
		return
	}
	if doc == nil {
		fail(c, http.StatusNotFound, "document not found", "")
		return
	}
	ok(c, http.StatusOK, gin.H{"document": doc})
}

func (s *Server) deleteDocument(c *gin.Context) {
	found, err := s.store.DeleteDocument(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to delete document", err.Error())
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "document not found", "")
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": true})
}
