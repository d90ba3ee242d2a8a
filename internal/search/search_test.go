package search

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/netdocs/ragserver/internal/chunking"
	"github.com/netdocs/ragserver/internal/clients/embedding"
	"github.com/netdocs/ragserver/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return store.New(dir, 64, time.Minute, logger)
}

func TestTokenizeDropsSingleLatinCharsKeepsSingleHan(t *testing.T) {
	tokens := tokenize("a BGP 配 test")
	require.Contains(t, tokens, "bgp")
	require.Contains(t, tokens, "配")
	require.NotContains(t, tokens, "a")
}

func TestExpandTokensOneHopSubstring(t *testing.T) {
	expanded := expandTokens([]string{"mlagbond"})
	found := false
	for _, e := range expanded {
		if e == "链路聚合" || e == "绑定" || e == "bonding" {
			found = true
		}
	}
	require.True(t, found, "expected a bond-related synonym from substring match, got %v", expanded)
}

func TestKeywordSearchRanksExactSubstringHigher(t *testing.T) {
	st := newTestStore(t)
	doc, err := st.CreateDocument(store.Document{Filename: "mlag-guide.md"})
	require.NoError(t, err)

	_, err = st.CreateChunks([]chunking.Chunk{
		{DocumentID: doc.ID, Content: "this chunk talks about mlag configuration in depth", ChunkType: chunking.ChunkTypeChild},
		{DocumentID: doc.ID, Content: "unrelated content about weather", ChunkType: chunking.ChunkTypeChild},
	})
	require.NoError(t, err)

	results, err := keywordSearch(st, "mlag configuration", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Contains(t, results[0].Chunk.Content, "mlag configuration")
}

func TestVectorSearchThresholdFiltersLowSimilarity(t *testing.T) {
	st := newTestStore(t)
	doc, err := st.CreateDocument(store.Document{Filename: "a.md"})
	require.NoError(t, err)

	created, err := st.CreateChunks([]chunking.Chunk{
		{DocumentID: doc.ID, Content: "close", ChunkType: chunking.ChunkTypeChild, Embedding: []float32{1, 0, 0}},
		{DocumentID: doc.ID, Content: "far", ChunkType: chunking.ChunkTypeChild, Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	results, err := vectorSearch(st, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "close", results[0].Chunk.Content)
}

type stubEmbedder struct{ vec []float64 }

func (s *stubEmbedder) CreateEmbedding(req embedding.Request) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: s.vec}}}, nil
}
func (s *stubEmbedder) CreateEmbeddingWithDefaults(model, text string) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: s.vec}}}, nil
}
func (s *stubEmbedder) CreateBatchEmbedding(model string, texts []string) (*embedding.Response, error) {
	return &embedding.Response{Data: []embedding.Data{{Embedding: s.vec}}}, nil
}

func TestSearchDegradesToKeywordOnlyWithoutEmbedder(t *testing.T) {
	st := newTestStore(t)
	doc, err := st.CreateDocument(store.Document{Filename: "a.md"})
	require.NoError(t, err)
	_, err = st.CreateChunks([]chunking.Chunk{
		{DocumentID: doc.ID, Content: "mlag setup guide", ChunkType: chunking.ChunkTypeChild},
	})
	require.NoError(t, err)

	s := NewSearcher(st, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	results, err := s.Search(context.Background(), "mlag", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, []string{"keyword"}, results[0].Sources)
}

func TestSearchFusesKeywordAndVector(t *testing.T) {
	st := newTestStore(t)
	doc, err := st.CreateDocument(store.Document{Filename: "a.md"})
	require.NoError(t, err)
	_, err = st.CreateChunks([]chunking.Chunk{
		{DocumentID: doc.ID, Content: "mlag setup guide", ChunkType: chunking.ChunkTypeChild, Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)

	s := NewSearcher(st, &stubEmbedder{vec: []float64{1, 0, 0}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	results, err := s.Search(context.Background(), "mlag", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.ElementsMatch(t, []string{"keyword", "vector"}, results[0].Sources)
}
