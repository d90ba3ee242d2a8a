package search

import (
	"math"
	"sort"

	"github.com/netdocs/ragserver/internal/store"
)

const vectorScoreThreshold = 0.2

// vectorSearch scores every chunk with a stored embedding by cosine
// similarity against an already-embedded query vector. Chunks scoring at or below the
// threshold are dropped entirely rather than ranked low, since a near
// orthogonal vector carries no retrieval signal.
func vectorSearch(st *store.Store, queryVector []float32, limit int) ([]ScoredChunk, error) {
	docs, err := st.ListDocuments()
	if err != nil {
		return nil, err
	}

	var results []ScoredChunk
	for _, doc := range docs {
		chunks, err := st.GetChunks(doc.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if !c.HasEmbedding() {
				continue
			}
			score := cosineSimilarity(queryVector, c.Embedding)
			if score > vectorScoreThreshold {
				results = append(results, ScoredChunk{Chunk: c, Score: score, Sources: []string{"vector"}})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// cosineSimilarity returns 0 for mismatched or empty vectors rather than
// panicking, since embedding dimensions can change across model upgrades.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
