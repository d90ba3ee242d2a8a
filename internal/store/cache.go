package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/netdocs/ragserver/internal/chunking"
)

// readCache is a short-lived TTL cache over parsed shard contents, keyed
// by file path. Every write through the store replaces the entry for its
// path with the data just written, and deleting a document removes its
// shard's entry; otherwise an entry expires after the TTL and the next
// read reloads from disk (spec.md §4.2). The
// teacher corpus's plain LRU (Aman-CERP-amanmcp/internal/embed) is
// generalized here to the expirable variant from the same module family.
type readCache struct {
	docs   *expirable.LRU[string, []Document]
	chunks *expirable.LRU[string, []chunking.Chunk]
}

func newReadCache(size int, ttl time.Duration) *readCache {
	return &readCache{
		docs:   expirable.NewLRU[string, []Document](size, nil, ttl),
		chunks: expirable.NewLRU[string, []chunking.Chunk](size, nil, ttl),
	}
}

func (c *readCache) getDocs(path string) ([]Document, bool) {
	return c.docs.Get(path)
}

func (c *readCache) setDocs(path string, v []Document) {
	c.docs.Add(path, v)
}

func (c *readCache) invalidateDocs(path string) {
	c.docs.Remove(path)
}

func (c *readCache) getChunks(path string) ([]chunking.Chunk, bool) {
	return c.chunks.Get(path)
}

func (c *readCache) setChunks(path string, v []chunking.Chunk) {
	c.chunks.Add(path, v)
}

func (c *readCache) invalidateChunks(path string) {
	c.chunks.Remove(path)
}
