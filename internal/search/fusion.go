package search

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/netdocs/ragserver/internal/chunking"
	"github.com/netdocs/ragserver/internal/clients/embedding"
	"github.com/netdocs/ragserver/internal/clients/rerank"
	"github.com/netdocs/ragserver/internal/store"
)

const rrfK = 60

// Searcher runs hybrid search over the shard store, fusing an always-on
// keyword ranker with a best-effort vector ranker, then an optional
// rerank pass when a reranker client is configured (spec.md §6: "used by
// query-time rerank path if present").
type Searcher struct {
	store    *store.Store
	embedder embedding.Embedder
	reranker rerank.Reranker
	logger   *slog.Logger
}

// NewSearcher builds a Searcher. embedder may be nil, in which case every
// search degrades to keyword-only.
func NewSearcher(st *store.Store, embedder embedding.Embedder, logger *slog.Logger) *Searcher {
	return &Searcher{store: st, embedder: embedder, logger: logger}
}

// WithReranker attaches an optional reranker client, returning the same
// Searcher for chaining at construction time.
func (s *Searcher) WithReranker(reranker rerank.Reranker) *Searcher {
	s.reranker = reranker
	return s
}

// Search returns the top-limit chunks for query, fused from keyword and
// vector rankings. Vector failures degrade gracefully; keyword failures
// are returned to the caller. When a reranker is configured, the fused
// top candidates are re-scored by the provider before truncation to
// limit; rerank failures degrade silently back to the fused order.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	keywordResults, err := keywordSearch(s.store, query, limit*2)
	if err != nil {
		return nil, err
	}

	vectorResults := s.tryVectorSearch(ctx, query, limit*2)

	fused := fuse(keywordResults, vectorResults, query, limit*2)
	return s.tryRerank(query, fused, limit), nil
}

func (s *Searcher) tryRerank(query string, candidates []ScoredChunk, limit int) []ScoredChunk {
	if s.reranker == nil || len(candidates) == 0 {
		return truncate(candidates, limit)
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Chunk.Content
	}

	resp, err := s.reranker.CreateRerankWithDefaults("", query, docs, limit)
	if err != nil {
		s.logger.Warn("rerank pass degraded to fused order", "error", err)
		return truncate(candidates, limit)
	}

	reordered := make([]ScoredChunk, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		sc := candidates[r.Index]
		sc.Score = r.RelevanceScore
		reordered = append(reordered, sc)
	}
	return truncate(reordered, limit)
}

func truncate(results []ScoredChunk, limit int) []ScoredChunk {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

// VectorSearch exposes the vector-only ranker for the dedicated endpoint.
func (s *Searcher) VectorSearch(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	vec, err := s.embedQuery(query)
	if err != nil {
		return nil, err
	}
	return vectorSearch(s.store, vec, limit)
}

func (s *Searcher) tryVectorSearch(ctx context.Context, query string, limit int) []ScoredChunk {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedQuery(query)
	if err != nil {
		s.logger.Warn("vector search degraded to keyword-only", "error", err)
		return nil
	}
	results, err := vectorSearch(s.store, vec, limit)
	if err != nil {
		s.logger.Warn("vector search degraded to keyword-only", "error", err)
		return nil
	}
	return results
}

func (s *Searcher) embedQuery(query string) ([]float32, error) {
	resp, err := s.embedder.CreateEmbeddingWithDefaults("", query)
	if err != nil {
		return nil, err
	}
	raw, ok := resp.First()
	if !ok {
		return nil, errNoEmbeddingData
	}
	vec := make([]float32, len(raw))
	for i, f := range raw {
		vec[i] = float32(f)
	}
	return vec, nil
}

var errNoEmbeddingData = &fusionError{"embedding response contained no data"}

type fusionError struct{ msg string }

func (e *fusionError) Error() string { return e.msg }

var mlagBondRe = regexp.MustCompile(`mlag|bond mlag`)

// fuse combines keyword and vector rankings via Reciprocal Rank Fusion,
// weighting each source by query intent and applying small bonuses for
// strong per-source signals.
func fuse(keywordResults, vectorResults []ScoredChunk, query string, limit int) []ScoredChunk {
	lowerQuery := strings.ToLower(query)

	keywordWeight, vectorWeight := 1.0, 1.0
	if isFusionBiasQuery(lowerQuery) {
		keywordWeight, vectorWeight = 1.5, 0.8
	}

	in := classifyIntent(lowerQuery)

	type fused struct {
		chunk   chunking.Chunk
		score   float64
		sources map[string]bool
	}
	byID := make(map[string]*fused)

	order := func(id string) *fused {
		f, ok := byID[id]
		if !ok {
			f = &fused{sources: make(map[string]bool)}
			byID[id] = f
		}
		return f
	}

	for rank, r := range keywordResults {
		f := order(r.Chunk.ID)
		f.chunk = r.Chunk
		f.sources["keyword"] = true
		contribution := keywordWeight / float64(rrfK+rank+1)
		if r.Score > 10 {
			contribution += 0.05
		}
		f.score += contribution
	}

	for rank, r := range vectorResults {
		f := order(r.Chunk.ID)
		f.chunk = r.Chunk
		f.sources["vector"] = true
		contribution := vectorWeight / float64(rrfK+rank+1)
		if r.Score > 0.85 {
			contribution += 0.05
		}
		f.score += contribution
	}

	if in.isCommand {
		for _, f := range byID {
			lowerContent := strings.ToLower(f.chunk.Content)
			if strings.Contains(lowerContent, "nv set") || strings.Contains(lowerContent, "nv show") || strings.Contains(lowerContent, "```") {
				f.score += 0.08
			}
			if mlagBondRe.MatchString(lowerContent) && mlagBondRe.MatchString(lowerQuery) {
				f.score += 0.1
			}
		}
	}

	out := make([]ScoredChunk, 0, len(byID))
	for _, f := range byID {
		sources := make([]string, 0, len(f.sources))
		for src := range f.sources {
			sources = append(sources, src)
		}
		sort.Strings(sources)
		out = append(out, ScoredChunk{Chunk: f.chunk, Score: f.score, Sources: sources})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
