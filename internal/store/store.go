package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/netdocs/ragserver/internal/chunking"
)

// Store is the sharded on-disk document/chunk store described in
// spec.md §4.2. Memory usage for any single operation scales with the
// size of one document, not the whole corpus.
type Store struct {
	dataDir string
	locks   *pathLocks
	cache   *readCache
	logger  *slog.Logger
}

// New builds a Store rooted at dataDir with a TTL read cache.
func New(dataDir string, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *Store {
	return &Store{
		dataDir: dataDir,
		locks:   newPathLocks(),
		cache:   newReadCache(cacheSize, cacheTTL),
		logger:  logger,
	}
}

func (s *Store) documentsPath() string {
	return filepath.Join(s.dataDir, "documents.json")
}

func (s *Store) chunksPath(documentID string) string {
	return filepath.Join(s.dataDir, "chunks", documentID+".json")
}

// ---- documents ----

func (s *Store) loadDocuments() ([]Document, error) {
	path := s.documentsPath()
	if cached, ok := s.cache.getDocs(path); ok {
		return cached, nil
	}

	var docs []Document
	if err := readJSONArray(path, &docs); err != nil {
		s.logger.Warn("malformed documents shard, treating as empty", "error", err)
		docs = nil
	}
	s.cache.setDocs(path, docs)
	return docs, nil
}

func (s *Store) saveDocuments(docs []Document) error {
	path := s.documentsPath()
	release := s.locks.acquire(path)
	defer release()
	return s.writeDocumentsLocked(path, docs)
}

func (s *Store) writeDocumentsLocked(path string, docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}
	if err := writeJSONArray(path, docs); err != nil {
		return fmt.Errorf("store: write documents: %w", err)
	}
	s.cache.setDocs(path, docs)
	return nil
}

// mutateDocuments reads the current documents, applies mutate, and
// writes the result back, all under the path's single writer lock so
// concurrent callers never lose each other's updates.
func (s *Store) mutateDocuments(mutate func([]Document) []Document) error {
	path := s.documentsPath()
	release := s.locks.acquire(path)
	defer release()

	var docs []Document
	if err := readJSONArray(path, &docs); err != nil {
		s.logger.Warn("malformed documents shard, treating as empty", "error", err)
		docs = nil
	}

	docs = mutate(docs)
	return s.writeDocumentsLocked(path, docs)
}

// ListDocuments returns all documents in insertion order.
func (s *Store) ListDocuments() ([]Document, error) {
	return s.loadDocuments()
}

// GetDocument returns a document by id, or nil if absent.
func (s *Store) GetDocument(id string) (*Document, error) {
	docs, err := s.loadDocuments()
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == id {
			d := docs[i]
			return &d, nil
		}
	}
	return nil, nil
}

// CreateDocument persists a new document, assigning an id if absent.
func (s *Store) CreateDocument(doc Document) (Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	err := s.mutateDocuments(func(docs []Document) []Document {
		return append(docs, doc)
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// DocumentPatch carries the mutable fields updateDocument may change.
type DocumentPatch struct {
	Status         *DocumentStatus
	ContentPreview *string
	ErrorMessage   *string
	Category       *string
}

// UpdateDocument applies a patch to a document by id, returning the
// updated record or nil if the document does not exist.
func (s *Store) UpdateDocument(id string, patch DocumentPatch) (*Document, error) {
	var updated *Document
	err := s.mutateDocuments(func(docs []Document) []Document {
		for i := range docs {
			if docs[i].ID != id {
				continue
			}
			if patch.Status != nil {
				docs[i].Status = *patch.Status
			}
			if patch.ContentPreview != nil {
				docs[i].ContentPreview = *patch.ContentPreview
			}
			if patch.ErrorMessage != nil {
				docs[i].ErrorMessage = *patch.ErrorMessage
			}
			if patch.Category != nil {
				docs[i].Category = *patch.Category
			}
			d := docs[i]
			updated = &d
			break
		}
		return docs
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDocument removes a document and cascades to its chunk shard.
// Returns whether the document was present.
func (s *Store) DeleteDocument(id string) (bool, error) {
	found := false
	err := s.mutateDocuments(func(docs []Document) []Document {
		remaining := docs[:0:0]
		for _, d := range docs {
			if d.ID == id {
				found = true
				continue
			}
			remaining = append(remaining, d)
		}
		return remaining
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	path := s.chunksPath(id)
	release := s.locks.acquire(path)
	err = os.Remove(path)
	release()
	if err != nil && !os.IsNotExist(err) {
		return true, fmt.Errorf("store: remove shard: %w", err)
	}
	s.cache.invalidateChunks(path)
	return true, nil
}

// ---- chunks ----

func (s *Store) loadChunks(documentID string) ([]chunking.Chunk, error) {
	path := s.chunksPath(documentID)
	if cached, ok := s.cache.getChunks(path); ok {
		return cached, nil
	}

	var chunks []chunking.Chunk
	if err := readJSONArray(path, &chunks); err != nil {
		s.logger.Warn("malformed chunk shard, treating as empty", "documentId", documentID, "error", err)
		chunks = nil
	}
	s.cache.setChunks(path, chunks)
	return chunks, nil
}

func (s *Store) saveChunks(documentID string, chunks []chunking.Chunk) error {
	path := s.chunksPath(documentID)
	release := s.locks.acquire(path)
	defer release()
	return s.writeChunksLocked(path, chunks)
}

func (s *Store) writeChunksLocked(path string, chunks []chunking.Chunk) error {
	if chunks == nil {
		chunks = []chunking.Chunk{}
	}
	if err := writeJSONArray(path, chunks); err != nil {
		return fmt.Errorf("store: write chunks: %w", err)
	}
	s.cache.setChunks(path, chunks)
	return nil
}

// mutateChunks reads a document's current chunk shard, applies mutate,
// and writes the result back under that shard's single writer lock, so
// concurrent writers to the same document never lose each other's
// updates (spec.md §8, concurrent createChunks property).
func (s *Store) mutateChunks(documentID string, mutate func([]chunking.Chunk) []chunking.Chunk) error {
	path := s.chunksPath(documentID)
	release := s.locks.acquire(path)
	defer release()

	var chunks []chunking.Chunk
	if err := readJSONArray(path, &chunks); err != nil {
		s.logger.Warn("malformed chunk shard, treating as empty", "documentId", documentID, "error", err)
		chunks = nil
	}

	before := len(chunks)
	chunks = mutate(chunks)
	if before == 0 && len(chunks) == 0 {
		// Nothing on disk and nothing to write: a missing shard stays missing.
		return nil
	}
	return s.writeChunksLocked(path, chunks)
}

// GetChunks returns all chunks of a document.
func (s *Store) GetChunks(documentID string) ([]chunking.Chunk, error) {
	return s.loadChunks(documentID)
}

// GetChunk returns a single chunk by id, or nil if absent.
func (s *Store) GetChunk(documentID, chunkID string) (*chunking.Chunk, error) {
	chunks, err := s.loadChunks(documentID)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if chunks[i].ID == chunkID {
			c := chunks[i]
			return &c, nil
		}
	}
	return nil, nil
}

// GetChunkStats returns the embedding coverage summary of spec.md §4.2.
func (s *Store) GetChunkStats(documentID string) (ChunkStats, error) {
	chunks, err := s.loadChunks(documentID)
	if err != nil {
		return ChunkStats{}, err
	}

	var stats ChunkStats
	stats.Total = len(chunks)
	for _, c := range chunks {
		switch c.ChunkType {
		case chunking.ChunkTypeParent:
			stats.ParentCount++
		case chunking.ChunkTypeChild:
			stats.ChildCount++
		}
		if c.HasEmbedding() {
			stats.WithEmbedding++
		} else if c.ChunkType == chunking.ChunkTypeChild {
			stats.RequiringEmbedding++
		}
	}
	return stats, nil
}

// CreateChunks persists a list of chunks that may span multiple
// documents, grouping writes per shard and assigning ids/createdAt to
// any chunk missing them.
func (s *Store) CreateChunks(chunks []chunking.Chunk) ([]chunking.Chunk, error) {
	byDoc := make(map[string][]int)
	for i, c := range chunks {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], i)
	}

	docIDs := make([]string, 0, len(byDoc))
	for id := range byDoc {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)

	now := time.Now().UTC()
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.New().String()
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
	}

	for _, docID := range docIDs {
		indices := byDoc[docID]
		err := s.mutateChunks(docID, func(existing []chunking.Chunk) []chunking.Chunk {
			for _, idx := range indices {
				existing = append(existing, chunks[idx])
			}
			return existing
		})
		if err != nil {
			return nil, err
		}
	}

	return chunks, nil
}

// UpdateChunkEmbedding scans all shards to find and update a single
// chunk's embedding (the slow path of spec.md §4.2). Returns whether the
// chunk was found.
func (s *Store) UpdateChunkEmbedding(chunkID string, embedding []float32) (bool, error) {
	docs, err := s.loadDocuments()
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		found := false
		err := s.mutateChunks(doc.ID, func(chunks []chunking.Chunk) []chunking.Chunk {
			for i := range chunks {
				if chunks[i].ID == chunkID {
					chunks[i].Embedding = embedding
					found = true
					break
				}
			}
			return chunks
		})
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// EmbeddingUpdate pairs a chunk id with its freshly computed embedding.
type EmbeddingUpdate struct {
	ChunkID   string
	Embedding []float32
}

// UpdateChunkEmbeddings applies a batch of embedding updates to a single
// document's shard (the fast path of spec.md §4.2), returning how many
// succeeded vs. were not found.
func (s *Store) UpdateChunkEmbeddings(documentID string, updates []EmbeddingUpdate) (success, failed int) {
	err := s.mutateChunks(documentID, func(chunks []chunking.Chunk) []chunking.Chunk {
		if len(chunks) == 0 {
			// Shard is gone (document deleted mid-task): silently no-op.
			failed = len(updates)
			return chunks
		}

		byID := make(map[string]int, len(chunks))
		for i, c := range chunks {
			byID[c.ID] = i
		}

		for _, u := range updates {
			if idx, ok := byID[u.ChunkID]; ok {
				chunks[idx].Embedding = u.Embedding
				success++
			} else {
				failed++
			}
		}
		return chunks
	})
	if err != nil {
		return 0, len(updates)
	}
	return success, failed
}
