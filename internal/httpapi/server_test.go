package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/netdocs/ragserver/internal/clients/embedding"
	"github.com/netdocs/ragserver/internal/config"
	"github.com/netdocs/ragserver/internal/orchestrator"
	"github.com/netdocs/ragserver/internal/queue"
	"github.com/netdocs/ragserver/internal/search"
	"github.com/netdocs/ragserver/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) CreateEmbedding(req embedding.Request) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: []float64{0.1, 0.2, 0.3}}}}, nil
}
func (fakeEmbedder) CreateEmbeddingWithDefaults(model, text string) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: []float64{0.1, 0.2, 0.3}}}}, nil
}
func (fakeEmbedder) CreateBatchEmbedding(model string, texts []string) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: []float64{0.1, 0.2, 0.3}}}}, nil
}

func testServer(t *testing.T) (*Server, *store.Store) {
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
	orch := orchestrator.New(st, qm, orchestrator.PlainTextExtractor{}, ccfg, logger)
	searcher := search.NewSearcher(st, fakeEmbedder{}, logger)
	settings := NewSettings(map[string]string{"embedding": "seed-key"})

	return New(st, qm, orch, searcher, settings, logger), st
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUploadDocumentMissingFileField(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocumentThenGet(t *testing.T) {
	srv, st := testServer(t)

	text := "# Title\nSome introductory content.\n\n## Section\nMore content under the heading for chunking purposes."

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "notes.md")
	require.NoError(t, err)
	_, err = part.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("userId", "user-1"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode(t, rec)
	require.Equal(t, true, resp["ok"])
	doc := resp["document"].(map[string]any)
	docID := doc["id"].(string)
	require.Equal(t, string(store.StatusProcessing), doc["status"])

	require.Eventually(t, func() bool {
		got, err := st.GetDocument(docID)
		return err == nil && got != nil && got.Status == store.StatusReady
	}, 3*time.Second, 10*time.Millisecond)

	getReq := httptest.NewRequest(http.MethodGet, "/api/documents/"+docID, nil)
	getRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getRec, getReq)

	require.Equal(t, http.StatusOK, getRec.Code)
	got := decode(t, getRec)
	gotDoc := got["document"].(map[string]any)
	require.Equal(t, string(store.StatusReady), gotDoc["status"])
}

func TestGetDocumentNotFound(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	require.Equal(t, false, resp["ok"])
}

func TestDeleteDocumentRoundTrip(t *testing.T) {
	srv, st := testServer(t)

	doc, err := st.CreateDocument(store.Document{Filename: "a.txt", Status: store.StatusReady})
	require.NoError(t, err)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID, nil)
	delRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusOK, delRec.Code)

	delAgainReq := httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID, nil)
	delAgainRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(delAgainRec, delAgainReq)
	require.Equal(t, http.StatusNotFound, delAgainRec.Code)
}

func TestSearchChunksRequiresQuery(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chunks/search", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _ := testServer(t)

	getReq := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	getRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
	got := decode(t, getRec)
	settings := got["settings"].(map[string]any)
	keys := settings["apiKeys"].(map[string]any)
	require.Equal(t, "seed-key", keys["embedding"])

	patch := bytes.NewBufferString(`{"apiKeys":{"reranker":"new-key"}}`)
	putReq := httptest.NewRequest(http.MethodPut, "/api/settings", patch)
	putReq.Header.Set("Content-Type", "application/json")
	putRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusOK, putRec.Code)

	updated := decode(t, putRec)
	updatedKeys := updated["settings"].(map[string]any)["apiKeys"].(map[string]any)
	require.Equal(t, "new-key", updatedKeys["reranker"])
	require.Equal(t, "seed-key", updatedKeys["embedding"])
}
