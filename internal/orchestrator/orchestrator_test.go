package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/netdocs/ragserver/internal/clients/embedding"
	"github.com/netdocs/ragserver/internal/config"
	"github.com/netdocs/ragserver/internal/queue"
	"github.com/netdocs/ragserver/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) CreateEmbedding(req embedding.Request) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: []float64{0.1, 0.2}}}}, nil
}
func (fakeEmbedder) CreateEmbeddingWithDefaults(model, text string) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: []float64{0.1, 0.2}}}}, nil
}
func (fakeEmbedder) CreateBatchEmbedding(model string, texts []string) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: []float64{0.1, 0.2}}}}, nil
}

func testOrchestrator(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(dir, 64, time.Minute, logger)
	qcfg := config.QueueConfig{BatchSize: 2, FlushThreshold: 1, BatchSleepMS: 1, MaxTasks: 10, RecoveryDelaySeconds: 0}
	qm := queue.New(st, fakeEmbedder{}, qcfg, logger)
	ccfg := config.ChunkingConfig{
		MaxChunkSize: 4000, DefaultParentSize: 200, DefaultChildSize: 60,
		LargeParentSize: 300, LargeChildSize: 80, LargeDocThreshold: 500 * 1024,
	}
	return New(st, qm, PlainTextExtractor{}, ccfg, logger), st
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	o, _ := testOrchestrator(t)
	_, err := o.Upload(context.Background(), "archive.zip", []byte("data"), "")
	require.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestUploadProcessesDocumentToReady(t *testing.T) {
	o, st := testOrchestrator(t)

	text := "# Title\nSome introductory text that is reasonably long.\n\n## Section\nMore content under the section heading to chunk."
	doc, err := o.Upload(context.Background(), "notes.md", []byte(text), "user-1")
	require.NoError(t, err)
	require.Equal(t, store.StatusProcessing, doc.Status)

	require.Eventually(t, func() bool {
		got, err := st.GetDocument(doc.ID)
		return err == nil && got != nil && got.Status == store.StatusReady
	}, 3*time.Second, 10*time.Millisecond)

	chunks, err := st.GetChunks(doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

func TestUploadFailsOnUnimplementedExtractor(t *testing.T) {
	o, st := testOrchestrator(t)

	doc, err := o.Upload(context.Background(), "report.pdf", []byte("%PDF-1.4 fake"), "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := st.GetDocument(doc.ID)
		return err == nil && got != nil && got.Status == store.StatusError
	}, 3*time.Second, 10*time.Millisecond)
}
