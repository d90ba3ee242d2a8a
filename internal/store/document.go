// Package store implements the sharded on-disk document/chunk store:
// one JSON array per document's chunks, atomic writes, a per-path write
// lock, and a short-lived read cache, per spec.md §4.2.
package store

import "time"

// DocumentStatus tracks a document's ingestion lifecycle.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// Document is the top-level record created on upload and mutated by the
// orchestrator as ingestion proceeds (spec.md §3). Its id always equals
// the stem of its chunk shard filename.
type Document struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	FileType       string         `json:"fileType"`
	FileSize       int64          `json:"fileSize"`
	Category       string         `json:"category,omitempty"`
	ContentPreview string         `json:"contentPreview,omitempty"`
	UploadedAt     time.Time      `json:"uploadedAt"`
	Status         DocumentStatus `json:"status"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	UserID         string         `json:"userId,omitempty"`
}

// ChunkStats summarizes a document's embedding coverage (spec.md §4.2
// getChunkStats).
type ChunkStats struct {
	Total              int `json:"total"`
	ParentCount        int `json:"parentCount"`
	ChildCount         int `json:"childCount"`
	WithEmbedding      int `json:"withEmbedding"`
	RequiringEmbedding int `json:"requiringEmbedding"`
}
