// Package orchestrator drives the end-to-end upload flow of spec.md
// §4.5: validate, persist a processing-status Document, then extract,
// chunk, store, and embed in the background while the client already
// has its response.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/netdocs/ragserver/internal/chunking"
	"github.com/netdocs/ragserver/internal/config"
	"github.com/netdocs/ragserver/internal/queue"
	"github.com/netdocs/ragserver/internal/store"
)

// ErrUnsupportedFileType is returned synchronously by Upload when the
// filename extension is not in the whitelist.
var ErrUnsupportedFileType = errors.New("orchestrator: unsupported file type")

const largeDocPreviewLen = 500

// Orchestrator wires together extraction, chunking, storage, and the
// embedding queue behind a single Upload call.
type Orchestrator struct {
	store     *store.Store
	queue     *queue.Manager
	extractor Extractor
	chunking  config.ChunkingConfig
	logger    *slog.Logger
}

// New builds an Orchestrator.
func New(st *store.Store, qm *queue.Manager, extractor Extractor, chunkingCfg config.ChunkingConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{store: st, queue: qm, extractor: extractor, chunking: chunkingCfg, logger: logger}
}

// Upload validates and registers a new document, then processes it in
// the background. It returns the freshly created Document (status
// "processing") immediately.
func (o *Orchestrator) Upload(ctx context.Context, filename string, content []byte, userID string) (store.Document, error) {
	if !IsAllowedExtension(filename) {
		return store.Document{}, ErrUnsupportedFileType
	}

	fixedName := fixMangledFilename(filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fixedName)), ".")

	doc, err := o.store.CreateDocument(store.Document{
		Filename: fixedName,
		FileType: ext,
		FileSize: int64(len(content)),
		Status:   store.StatusProcessing,
		UserID:   userID,
	})
	if err != nil {
		return store.Document{}, err
	}

	go o.process(context.WithoutCancel(ctx), doc, content)

	return doc, nil
}

func (o *Orchestrator) process(ctx context.Context, doc store.Document, content []byte) {
	text, err := o.extractor.Extract(doc.Filename, content)
	if err != nil || strings.TrimSpace(text) == "" {
		msg := "extracted text was empty"
		if err != nil {
			msg = err.Error()
		}
		o.fail(doc.ID, msg)
		return
	}

	preview := text
	if len(preview) > largeDocPreviewLen {
		preview = preview[:largeDocPreviewLen]
	}
	if _, err := o.store.UpdateDocument(doc.ID, store.DocumentPatch{ContentPreview: &preview}); err != nil {
		o.logger.Warn("failed to set content preview", "documentId", doc.ID, "error", err)
	}

	sizes := o.sizesFor(len(content))
	chunks, err := chunking.Chunk(doc.ID, text, sizes)
	if err != nil {
		o.fail(doc.ID, err.Error())
		return
	}

	created, err := o.store.CreateChunks(chunks)
	if err != nil {
		o.fail(doc.ID, err.Error())
		return
	}

	var childIDs []string
	for _, c := range created {
		if c.ChunkType == chunking.ChunkTypeChild {
			childIDs = append(childIDs, c.ID)
		}
	}

	if len(childIDs) == 0 {
		ready := store.StatusReady
		if _, err := o.store.UpdateDocument(doc.ID, store.DocumentPatch{Status: &ready}); err != nil {
			o.logger.Warn("failed to mark document ready", "documentId", doc.ID, "error", err)
		}
		return
	}

	// Embedding happens in-process and synchronously from the
	// orchestrator's point of view (step 6 of spec.md §4.5): the task
	// still runs through the queue's batching and inter-batch sleep, and
	// this goroutine polls it until it reaches a terminal state; the
	// queue itself marks the document ready or error.
	task := o.queue.Enqueue(ctx, doc.ID, childIDs)
	o.awaitTask(task.ID)
}

const taskPollInterval = 20 * time.Millisecond

func (o *Orchestrator) awaitTask(taskID string) {
	for {
		t := o.queue.GetTask(taskID)
		if t == nil {
			return
		}
		switch t.Status {
		case queue.TaskCompleted, queue.TaskFailed:
			return
		}
		time.Sleep(taskPollInterval)
	}
}

func (o *Orchestrator) fail(documentID, message string) {
	status := store.StatusError
	if _, err := o.store.UpdateDocument(documentID, store.DocumentPatch{Status: &status, ErrorMessage: &message}); err != nil {
		o.logger.Warn("failed to mark document error", "documentId", documentID, "error", err)
	}
}

// sizesFor picks parent/child chunk sizes by document size, per spec.md
// §4.5 step 5.
func (o *Orchestrator) sizesFor(byteSize int) chunking.Sizes {
	if byteSize > o.chunking.LargeDocThreshold {
		return chunking.Sizes{
			MaxChunkSize: o.chunking.MaxChunkSize,
			ParentSize:   o.chunking.LargeParentSize,
			ChildSize:    o.chunking.LargeChildSize,
		}
	}
	return chunking.Sizes{
		MaxChunkSize: o.chunking.MaxChunkSize,
		ParentSize:   o.chunking.DefaultParentSize,
		ChildSize:    o.chunking.DefaultChildSize,
	}
}
