// Package queue drives the asynchronous embedding pipeline: once a
// document's chunks are persisted, their child chunks need vectors before
// search can use them. The manager fans requests out across a bounded
// worker pool and flushes updates back to the shard store in batches.
package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netdocs/ragserver/internal/chunking"
	"github.com/netdocs/ragserver/internal/clients/embedding"
	"github.com/netdocs/ragserver/internal/config"
	"github.com/netdocs/ragserver/internal/store"
)

// TaskStatus tracks the lifecycle of an embedding task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskType identifies the kind of work a Task performs. generate_embeddings
// is the only kind today.
type TaskType string

const TaskTypeGenerateEmbeddings TaskType = "generate_embeddings"

// TaskResult holds the per-chunk outcome counts recorded once a task
// finishes, whether or not every chunk succeeded.
type TaskResult struct {
	SuccessCount int `json:"successCount"`
	FailCount    int `json:"failCount"`
	ActualSaved  int `json:"actualSaved"`
	ActualTotal  int `json:"actualTotal"`
}

// Task represents one document's worth of pending embedding work.
type Task struct {
	ID         string      `json:"id"`
	Type       TaskType    `json:"type"`
	DocumentID string      `json:"documentId"`
	ChunkIDs   []string    `json:"chunkIds,omitempty"`
	Status     TaskStatus  `json:"status"`
	Total      int         `json:"total"`
	Current    int         `json:"current"`
	Progress   int         `json:"progress"`
	Error      string      `json:"error,omitempty"`
	Result     *TaskResult `json:"result,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Manager owns the in-memory task table and the worker pool that drains
// it. It is a per-process singleton; task state does not survive restart,
// which is why Recover rebuilds pending work from the store on boot.
type Manager struct {
	store    *store.Store
	embedder embedding.Embedder
	cfg      config.QueueConfig
	logger   *slog.Logger

	mu    sync.Mutex
	tasks map[string]*Task
}

// New builds a task manager bound to a store and an embedding client.
func New(st *store.Store, embedder embedding.Embedder, cfg config.QueueConfig, logger *slog.Logger) *Manager {
	return &Manager{
		store:    st,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		tasks:    make(map[string]*Task),
	}
}

// Enqueue registers a new embedding task for a document's child chunks and
// starts processing it in the background. It returns immediately with the
// task id; callers poll GetTask for progress.
func (m *Manager) Enqueue(ctx context.Context, documentID string, chunkIDs []string) *Task {
	t := &Task{
		ID:         uuid.New().String(),
		Type:       TaskTypeGenerateEmbeddings,
		DocumentID: documentID,
		ChunkIDs:   chunkIDs,
		Status:     TaskPending,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	if len(m.tasks) >= m.cfg.MaxTasks {
		m.evictOldestCompleted()
	}
	m.tasks[t.ID] = t
	m.mu.Unlock()

	go m.run(ctx, t)
	return t
}

// GetTask returns a task by id, or nil if unknown (including evicted).
func (m *Manager) GetTask(id string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// TasksForDocument returns every known task for a document, most recent
// first; used by the task polling endpoint that lists per-document history.
func (m *Manager) TasksForDocument(documentID string) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Task
	for _, t := range m.tasks {
		if t.DocumentID == documentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// evictOldestCompleted drops the oldest completed/failed task to make
// room under MaxTasks. Must be called with mu held.
func (m *Manager) evictOldestCompleted() {
	var oldestID string
	var oldestAt time.Time
	for id, t := range m.tasks {
		if t.Status != TaskCompleted && t.Status != TaskFailed {
			continue
		}
		if oldestID == "" || t.UpdatedAt.Before(oldestAt) {
			oldestID, oldestAt = id, t.UpdatedAt
		}
	}
	if oldestID != "" {
		delete(m.tasks, oldestID)
	}
}

func (m *Manager) setStatus(t *Task, status TaskStatus, errMsg string) {
	m.mu.Lock()
	t.Status = status
	t.Error = errMsg
	t.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
}

// setProgress records how many of the task's chunks have been attempted
// so far; called after every batch per spec.md §4.3 ("progress is updated
// after every batch").
func (m *Manager) setProgress(t *Task, current, total int) {
	m.mu.Lock()
	t.Current = current
	t.Total = total
	if total > 0 {
		t.Progress = current * 100 / total
	} else {
		t.Progress = 100
	}
	t.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
}

func (m *Manager) setResult(t *Task, result TaskResult) {
	m.mu.Lock()
	t.Result = &result
	m.mu.Unlock()
}

// run performs the embedding work for a task: load the document's child
// chunks lacking embeddings, embed them in bounded-concurrency batches,
// and flush updates back to the store in groups. Per-chunk embedding
// failures are isolated and counted (spec.md §4.3 Failure handling) —
// they never abort the task; only a wholly different, top-level error
// (failing to read the shard, every chunk failing, or ctx cancellation)
// marks the task failed. Embeddings are written to the store only after
// the last batch has been embedded.
func (m *Manager) run(ctx context.Context, t *Task) {
	m.setStatus(t, TaskProcessing, "")

	chunks, err := m.store.GetChunks(t.DocumentID)
	if err != nil {
		m.setStatus(t, TaskFailed, err.Error())
		m.markDocumentError(t.DocumentID, err)
		return
	}

	want := make(map[string]bool, len(t.ChunkIDs))
	for _, id := range t.ChunkIDs {
		want[id] = true
	}

	var pending []chunking.Chunk
	for _, c := range chunks {
		if c.ChunkType != chunking.ChunkTypeChild {
			continue
		}
		if len(want) > 0 && !want[c.ID] {
			continue
		}
		if c.HasEmbedding() {
			continue
		}
		pending = append(pending, c)
	}

	if len(pending) == 0 {
		m.setProgress(t, 0, 0)
		m.setResult(t, TaskResult{})
		m.setStatus(t, TaskCompleted, "")
		m.markDocumentReady(t.DocumentID)
		return
	}

	results, failCount, topErr := m.embedBatched(ctx, t, pending)
	if topErr != nil {
		m.setStatus(t, TaskFailed, topErr.Error())
		m.markDocumentError(t.DocumentID, topErr)
		return
	}
	if failCount == len(pending) {
		m.setStatus(t, TaskFailed, errAllChunksFailed.Error())
		m.markDocumentError(t.DocumentID, errAllChunksFailed)
		return
	}

	if err := m.flush(t.DocumentID, results); err != nil {
		m.setStatus(t, TaskFailed, err.Error())
		m.markDocumentError(t.DocumentID, err)
		return
	}

	actualSaved := m.countEmbedded(t.DocumentID, pending)
	m.setResult(t, TaskResult{
		SuccessCount: len(results),
		FailCount:    failCount,
		ActualSaved:  actualSaved,
		ActualTotal:  len(pending),
	})
	m.setStatus(t, TaskCompleted, "")
	m.markDocumentReady(t.DocumentID)
}

// countEmbedded re-reads the shard to verify how many of the pending
// chunks now carry an embedding, per spec.md §4.3 step 7.
func (m *Manager) countEmbedded(documentID string, pending []chunking.Chunk) int {
	chunks, err := m.store.GetChunks(documentID)
	if err != nil {
		m.logger.Warn("failed to verify saved embeddings", "documentId", documentID, "error", err)
		return 0
	}
	embedded := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if c.HasEmbedding() {
			embedded[c.ID] = true
		}
	}
	saved := 0
	for _, c := range pending {
		if embedded[c.ID] {
			saved++
		}
	}
	return saved
}

func (m *Manager) markDocumentReady(documentID string) {
	ready := store.StatusReady
	_, err := m.store.UpdateDocument(documentID, store.DocumentPatch{Status: &ready})
	if err != nil {
		m.logger.Warn("failed to mark document ready", "documentId", documentID, "error", err)
	}
}

func (m *Manager) markDocumentError(documentID string, cause error) {
	status := store.StatusError
	msg := cause.Error()
	_, err := m.store.UpdateDocument(documentID, store.DocumentPatch{Status: &status, ErrorMessage: &msg})
	if err != nil {
		m.logger.Warn("failed to mark document error", "documentId", documentID, "error", err)
	}
}

// embedBatched requests embeddings for pending chunks in fixed-size
// micro-batches, running BatchSize requests concurrently within each
// batch and sleeping BatchSleepMS between batches to stay under provider
// rate limits. A bounded semaphore plus a result channel mirrors the
// fan-out/fan-in shape of a bulk parallel embedding call.
//
// Each chunk's request is isolated: a failure increments the returned
// failCount and the batch continues, per spec.md §4.3 Failure handling.
// The only error this returns is a top-level one — ctx cancellation —
// that aborts processing of the remaining batches outright.
func (m *Manager) embedBatched(ctx context.Context, t *Task, chunks []chunking.Chunk) ([]store.EmbeddingUpdate, int, error) {
	results := make([]store.EmbeddingUpdate, 0, len(chunks))
	model := ""
	failCount := 0
	processed := 0

	for start := 0; start < len(chunks); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		sem := make(chan struct{}, m.cfg.BatchSize)
		var wg sync.WaitGroup
		type outcome struct {
			update store.EmbeddingUpdate
			err    error
		}
		out := make(chan outcome, len(batch))

		for _, c := range batch {
			wg.Add(1)
			sem <- struct{}{}
			go func(c chunking.Chunk) {
				defer wg.Done()
				defer func() { <-sem }()

				resp, err := m.embedder.CreateEmbeddingWithDefaults(model, c.Content)
				if err != nil {
					out <- outcome{err: err}
					return
				}
				raw, ok := resp.First()
				if !ok {
					out <- outcome{err: errEmptyEmbedding}
					return
				}
				vec := make([]float32, len(raw))
				for i, f := range raw {
					vec[i] = float32(f)
				}
				out <- outcome{update: store.EmbeddingUpdate{ChunkID: c.ID, Embedding: vec}}
			}(c)
		}

		wg.Wait()
		close(out)

		for o := range out {
			if o.err != nil {
				m.logger.Warn("embedding request failed, isolating to this chunk", "error", o.err)
				failCount++
				continue
			}
			results = append(results, o.update)
		}

		processed += len(batch)
		m.setProgress(t, processed, len(chunks))

		select {
		case <-ctx.Done():
			return results, failCount, ctx.Err()
		case <-time.After(time.Duration(m.cfg.BatchSleepMS) * time.Millisecond):
		}
	}

	return results, failCount, nil
}

// flush writes embedding updates back to the store in groups of
// FlushThreshold, plus a final partial group. run calls it once, after
// every batch has been embedded, so nothing is saved while a task is
// still embedding. Updates that match no chunk are logged, not returned
// as an error; flush always returns nil, and there is no per-chunk
// fallback write.
func (m *Manager) flush(documentID string, updates []store.EmbeddingUpdate) error {
	for start := 0; start < len(updates); start += m.cfg.FlushThreshold {
		end := start + m.cfg.FlushThreshold
		if end > len(updates) {
			end = len(updates)
		}
		_, failed := m.store.UpdateChunkEmbeddings(documentID, updates[start:end])
		if failed > 0 {
			m.logger.Warn("some embedding updates did not match a chunk", "documentId", documentID, "failed", failed)
		}
	}
	return nil
}

// Recover scans for documents left in "processing" state (e.g. after a
// crash mid-embedding) and re-enqueues their missing child embeddings
// after a short delay, giving the provider time to recover too.
func (m *Manager) Recover(ctx context.Context) {
	time.Sleep(time.Duration(m.cfg.RecoveryDelaySeconds) * time.Second)

	docs, err := m.store.ListDocuments()
	if err != nil {
		m.logger.Error("recovery scan failed to list documents", "error", err)
		return
	}

	for _, doc := range docs {
		if doc.Status != store.StatusProcessing {
			continue
		}
		chunks, err := m.store.GetChunks(doc.ID)
		if err != nil {
			m.logger.Warn("recovery scan failed to load chunks", "documentId", doc.ID, "error", err)
			continue
		}
		var missing []string
		for _, c := range chunks {
			if c.ChunkType == chunking.ChunkTypeChild && !c.HasEmbedding() {
				missing = append(missing, c.ID)
			}
		}
		if len(missing) == 0 {
			continue
		}
		m.logger.Info("resuming interrupted embedding task", "documentId", doc.ID, "pending", len(missing))
		m.Enqueue(ctx, doc.ID, missing)
	}
}

var errEmptyEmbedding = &embeddingError{"embedding response contained no data"}
var errAllChunksFailed = &embeddingError{"every chunk in the task failed to embed"}

type embeddingError struct{ msg string }

func (e *embeddingError) Error() string { return e.msg }
