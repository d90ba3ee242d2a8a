package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/netdocs/ragserver/internal/chunking"
	"github.com/netdocs/ragserver/internal/store"
)

// ScoredChunk pairs a chunk with the score one or more rankers assigned
// it, plus which ranker(s) contributed.
type ScoredChunk struct {
	Chunk   chunking.Chunk
	Score   float64
	Sources []string
}

const (
	resultBufferCap   = 50 // truncate when the buffer exceeds this multiple of limit
	resultBufferKeep  = 25 // keep this multiple of limit after truncation
)

var (
	commandPatternRe = regexp.MustCompile(`nv config|nv show|nv set|(nv|show|netq|vtysh) (config|show|ip|interface|platform)`)
	fencedCodeRe     = regexp.MustCompile("```")
	conceptShapeRe   = regexp.MustCompile(`(?i)\bis a\b|是一种|指的是`)
	troubleMarkers   = []string{"error", "fail", "failure", "down", "drop", "troubleshoot", "debug", "log", "problem", "issue"}
)

// keywordSearch implements the BM25-like scorer of spec.md §4.4.A over
// every document's chunks. It never returns an error for "no matches";
// it only errs on store I/O failure, since the spec marks this path as
// fatal (unlike the vector scorer, which degrades gracefully).
func keywordSearch(st *store.Store, query string, limit int) ([]ScoredChunk, error) {
	lowerQuery := strings.ToLower(query)
	tokens := tokenize(query)
	expanded := expandTokens(tokens)
	in := classifyIntent(lowerQuery)

	docs, err := st.ListDocuments()
	if err != nil {
		return nil, err
	}

	var results []ScoredChunk
	for _, doc := range docs {
		docBonus := 0.0
		lowerFilename := strings.ToLower(doc.Filename)
		for _, tok := range expanded {
			if strings.Contains(lowerFilename, tok) {
				docBonus += 2
			}
		}

		chunks, err := st.GetChunks(doc.ID)
		if err != nil {
			return nil, err
		}

		for _, c := range chunks {
			score := scoreChunk(c, lowerQuery, expanded, in, docBonus)
			if score > 0 {
				results = append(results, ScoredChunk{Chunk: c, Score: score, Sources: []string{"keyword"}})
			}
			if len(results) > limit*resultBufferCap {
				results = truncateTopN(results, limit*resultBufferKeep)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scoreChunk(c chunking.Chunk, lowerQuery string, expanded []string, in intent, docBonus float64) float64 {
	lowerContent := strings.ToLower(c.Content)
	score := docBonus

	if lowerQuery != "" && strings.Contains(lowerContent, lowerQuery) {
		score += 10
	}

	matched := 0
	for _, tok := range expanded {
		freq := strings.Count(lowerContent, tok)
		if freq == 0 {
			continue
		}
		matched++
		w := 1.0
		if isTechnicalTerm(tok) {
			w = 3.0
		}
		score += (1 + math.Log(float64(freq))) * w
	}
	if matched >= 2 {
		score += float64(matched) * 1.5
	}

	if score > 2 {
		score += intentBonus(lowerContent, lowerQuery, in)
	}

	return score
}

func intentBonus(lowerContent, lowerQuery string, in intent) float64 {
	bonus := 0.0

	if in.isCommand {
		if commandPatternRe.MatchString(lowerContent) || fencedCodeRe.MatchString(lowerContent) {
			bonus += 10
		}
		if strings.Contains(lowerContent, "show") && strings.Contains(lowerQuery, "show") {
			bonus += 5
		}
		if strings.Contains(lowerContent, "config") && strings.Contains(lowerQuery, "config") {
			bonus += 5
		}
		if strings.Contains(lowerContent, "set") && strings.Contains(lowerQuery, "set") {
			bonus += 8
		}
		if strings.Contains(lowerContent, "mlag") && strings.Contains(lowerContent, "bond") &&
			strings.Contains(lowerQuery, "mlag") {
			bonus += 15
		}
	}

	if in.isConcept {
		if conceptShapeRe.MatchString(lowerContent) {
			bonus += 15
		}
		if strings.HasPrefix(strings.TrimSpace(lowerContent), "#") {
			bonus += 10
		}
	}

	if in.isTroubleshooting {
		for _, m := range troubleMarkers {
			if strings.Contains(lowerContent, m) {
				bonus += 15
				break
			}
		}
	}

	return bonus
}

func truncateTopN(results []ScoredChunk, keep int) []ScoredChunk {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if keep < len(results) {
		results = results[:keep]
	}
	return results
}
