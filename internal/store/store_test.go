package store

import (
	"log/slog"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/netdocs/ragserver/internal/chunking"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(dir, 64, time.Minute, logger)
}

func TestCreateAndGetDocument(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.CreateDocument(Document{Filename: "runbook.md", FileType: "md", Status: StatusProcessing})
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)

	got, err := s.GetDocument(doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "runbook.md", got.Filename)
}

func TestCreateChunksThenGetChunksUnion(t *testing.T) {
	s := newTestStore(t)
	doc, err := s.CreateDocument(Document{Filename: "a.md"})
	require.NoError(t, err)

	input := []chunking.Chunk{
		{DocumentID: doc.ID, Content: "first", ChunkType: chunking.ChunkTypeParent},
		{DocumentID: doc.ID, Content: "second", ChunkType: chunking.ChunkTypeChild},
	}
	created, err := s.CreateChunks(input)
	require.NoError(t, err)
	require.Len(t, created, 2)

	got, err := s.GetChunks(doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	seen := map[string]bool{}
	for _, c := range got {
		seen[c.Content] = true
	}
	require.True(t, seen["first"])
	require.True(t, seen["second"])
}

func TestUpdateChunkEmbeddingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	doc, err := s.CreateDocument(Document{Filename: "a.md"})
	require.NoError(t, err)

	created, err := s.CreateChunks([]chunking.Chunk{{DocumentID: doc.ID, Content: "x", ChunkType: chunking.ChunkTypeChild}})
	require.NoError(t, err)
	id := created[0].ID

	ok, err := s.UpdateChunkEmbedding(id, []float32{0.1, 0.2, 0.3})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetChunk(doc.ID, id)
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
}

func TestDeleteDocumentCascadesChunks(t *testing.T) {
	s := newTestStore(t)
	doc, err := s.CreateDocument(Document{Filename: "a.md"})
	require.NoError(t, err)
	_, err = s.CreateChunks([]chunking.Chunk{{DocumentID: doc.ID, Content: "x", ChunkType: chunking.ChunkTypeChild}})
	require.NoError(t, err)

	ok, err := s.DeleteDocument(doc.ID)
	require.NoError(t, err)
	require.True(t, ok)

	chunks, err := s.GetChunks(doc.ID)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestConcurrentCreateChunksUnion(t *testing.T) {
	s := newTestStore(t)
	doc, err := s.CreateDocument(Document{Filename: "a.md"})
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.CreateChunks([]chunking.Chunk{{DocumentID: doc.ID, Content: "chunk", ChunkType: chunking.ChunkTypeChild}})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.GetChunks(doc.ID)
	require.NoError(t, err)
	require.Len(t, got, writers)
}
