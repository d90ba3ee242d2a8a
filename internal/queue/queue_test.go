package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/netdocs/ragserver/internal/chunking"
	"github.com/netdocs/ragserver/internal/clients/embedding"
	"github.com/netdocs/ragserver/internal/config"
	"github.com/netdocs/ragserver/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	dims        int
	fail        bool
	failContent map[string]bool
}

func (f *fakeEmbedder) CreateEmbedding(req embedding.Request) (*embedding.Response, error) {
	return f.CreateEmbeddingWithDefaults(req.Model, "")
}

func (f *fakeEmbedder) CreateEmbeddingWithDefaults(model, text string) (*embedding.Response, error) {
	if f.fail || f.failContent[text] {
		return nil, errEmptyEmbedding
	}
	vec := make([]float64, f.dims)
	for i := range vec {
		vec[i] = 0.1
	}
	return &embedding.Response{Data: []embedding.Data{{Embedding: vec}}}, nil
}

func (f *fakeEmbedder) CreateBatchEmbedding(model string, texts []string) (*embedding.Response, error) {
	return f.CreateEmbeddingWithDefaults(model, "")
}

func testManager(t *testing.T, embedder embedding.Embedder) (*Manager, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(dir, 64, time.Minute, logger)
	cfg := config.QueueConfig{BatchSize: 2, FlushThreshold: 1, BatchSleepMS: 1, MaxTasks: 10, RecoveryDelaySeconds: 0}
	return New(st, embedder, cfg, logger), st
}

func TestEnqueueEmbedsChildChunksAndMarksReady(t *testing.T) {
	m, st := testManager(t, &fakeEmbedder{dims: 4})

	doc, err := st.CreateDocument(store.Document{Filename: "a.md", Status: store.StatusProcessing})
	require.NoError(t, err)

	created, err := st.CreateChunks([]chunking.Chunk{
		{DocumentID: doc.ID, Content: "parent", ChunkType: chunking.ChunkTypeParent},
		{DocumentID: doc.ID, Content: "child one", ChunkType: chunking.ChunkTypeChild},
		{DocumentID: doc.ID, Content: "child two", ChunkType: chunking.ChunkTypeChild},
	})
	require.NoError(t, err)

	var childIDs []string
	for _, c := range created {
		if c.ChunkType == chunking.ChunkTypeChild {
			childIDs = append(childIDs, c.ID)
		}
	}

	task := m.Enqueue(context.Background(), doc.ID, childIDs)
	require.Eventually(t, func() bool {
		got := m.GetTask(task.ID)
		return got != nil && got.Status == TaskCompleted
	}, 2*time.Second, 5*time.Millisecond)

	chunks, err := st.GetChunks(doc.ID)
	require.NoError(t, err)
	for _, c := range chunks {
		if c.ChunkType == chunking.ChunkTypeChild {
			require.True(t, c.HasEmbedding())
		}
	}

	updated, err := st.GetDocument(doc.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusReady, updated.Status)
}

func TestEnqueueFailureMarksDocumentError(t *testing.T) {
	m, st := testManager(t, &fakeEmbedder{fail: true})

	doc, err := st.CreateDocument(store.Document{Filename: "a.md", Status: store.StatusProcessing})
	require.NoError(t, err)
	created, err := st.CreateChunks([]chunking.Chunk{
		{DocumentID: doc.ID, Content: "child", ChunkType: chunking.ChunkTypeChild},
	})
	require.NoError(t, err)

	task := m.Enqueue(context.Background(), doc.ID, []string{created[0].ID})
	require.Eventually(t, func() bool {
		got := m.GetTask(task.ID)
		return got != nil && got.Status == TaskFailed
	}, 2*time.Second, 5*time.Millisecond)

	updated, err := st.GetDocument(doc.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusError, updated.Status)
}

func TestEnqueuePartialFailureCompletesWithCounts(t *testing.T) {
	failContent := map[string]bool{"fail one": true, "fail two": true}
	m, st := testManager(t, &fakeEmbedder{dims: 4, failContent: failContent})

	doc, err := st.CreateDocument(store.Document{Filename: "a.md", Status: store.StatusProcessing})
	require.NoError(t, err)

	var toCreate []chunking.Chunk
	for i := 0; i < 3; i++ {
		toCreate = append(toCreate, chunking.Chunk{DocumentID: doc.ID, Content: "ok chunk", ChunkType: chunking.ChunkTypeChild})
	}
	toCreate = append(toCreate,
		chunking.Chunk{DocumentID: doc.ID, Content: "fail one", ChunkType: chunking.ChunkTypeChild},
		chunking.Chunk{DocumentID: doc.ID, Content: "fail two", ChunkType: chunking.ChunkTypeChild},
	)
	created, err := st.CreateChunks(toCreate)
	require.NoError(t, err)

	var childIDs []string
	for _, c := range created {
		childIDs = append(childIDs, c.ID)
	}

	task := m.Enqueue(context.Background(), doc.ID, childIDs)
	require.Eventually(t, func() bool {
		got := m.GetTask(task.ID)
		return got != nil && got.Status == TaskCompleted
	}, 2*time.Second, 5*time.Millisecond)

	final := m.GetTask(task.ID)
	require.NotNil(t, final.Result)
	require.Equal(t, 3, final.Result.SuccessCount)
	require.Equal(t, 2, final.Result.FailCount)
	require.Equal(t, 3, final.Result.ActualSaved)
	require.Equal(t, 5, final.Result.ActualTotal)

	updated, err := st.GetDocument(doc.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusReady, updated.Status)

	chunks, err := st.GetChunks(doc.ID)
	require.NoError(t, err)
	embedded := 0
	for _, c := range chunks {
		if c.HasEmbedding() {
			embedded++
		}
	}
	require.Equal(t, 3, embedded)
}
