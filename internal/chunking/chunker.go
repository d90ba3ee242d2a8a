package chunking

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Chunk transforms a UTF-8 text blob into an ordered list of parent/child
// chunks, following the pipeline of spec.md §4.1: block parse, section
// tree, per-section materialization with breadcrumb banners, parent
// formation at targetSize=parentSize (hard cap maxChunkSize), and child
// formation at targetSize=childSize. Every returned chunk has non-empty
// content, parents precede their children, and chunkIndex is a globally
// assigned monotonic integer over the returned list.
//
// Returns an empty, non-error result only when the input is empty or
// whitespace-only.
func Chunk(documentID, text string, sizes Sizes) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var blocks []block
	func() {
		// A panic inside the Markdown parser leaves blocks nil, which
		// needsFallback treats as "no structure".
		defer func() {
			if recover() != nil {
				blocks = nil
			}
		}()
		blocks = parseBlocks(text)
	}()
	if needsFallback(blocks) {
		return fallbackChunk(documentID, text, sizes), nil
	}

	secs := buildSections(blocks)
	flat := flattenSections(secs)

	index := 0
	var out []Chunk

	for _, sec := range flat {
		content := sec.materialize()
		if strings.TrimSpace(content) == "" {
			continue
		}

		segments := groupIntoSegments(splitProtected(content), sizes.ParentSize, sizes.MaxChunkSize)
		totalSegments := len(segments)

		for segIdx, segment := range segments {
			if strings.TrimSpace(segment) == "" {
				continue
			}

			banner := breadcrumbBanner(sec.Breadcrumbs, segIdx, totalSegments)
			parentContent := segment
			if banner != "" {
				parentContent = banner + "\n\n" + segment
			}

			parentID := uuid.New().String()
			parentMeta := ChunkMetadata{Breadcrumbs: sec.Breadcrumbs, Header: sec.Title}
			if totalSegments > 1 {
				si, ts := segIdx, totalSegments
				parentMeta.SegmentIndex = &si
				parentMeta.TotalSegments = &ts
			}

			out = append(out, Chunk{
				ID:         parentID,
				DocumentID: documentID,
				Content:    parentContent,
				ChunkIndex: index,
				TokenCount: EstimateTokenCount(parentContent),
				ChunkType:  ChunkTypeParent,
				Metadata:   parentMeta,
				CreatedAt:  time.Now().UTC(),
			})
			index++

			children := groupIntoSegments(splitProtected(segment), sizes.ChildSize, sizes.MaxChunkSize)
			totalChildren := len(children)
			lastCrumb := ""
			if n := len(sec.Breadcrumbs); n > 0 {
				lastCrumb = sec.Breadcrumbs[n-1]
			}

			for childIdx, childSegment := range children {
				if strings.TrimSpace(childSegment) == "" {
					continue
				}
				childContent := childSegment
				if childIdx > 0 && lastCrumb != "" {
					childContent = "[..." + lastCrumb + "]\n\n" + childSegment
				}

				ci, tc := childIdx, totalChildren
				out = append(out, Chunk{
					ID:         uuid.New().String(),
					DocumentID: documentID,
					Content:    childContent,
					ChunkIndex: index,
					TokenCount: EstimateTokenCount(childContent),
					ChunkType:  ChunkTypeChild,
					ParentID:   parentID,
					Metadata: ChunkMetadata{
						Breadcrumbs:   sec.Breadcrumbs,
						Header:        sec.Title,
						ChildIndex:    &ci,
						TotalChildren: &tc,
					},
					CreatedAt: time.Now().UTC(),
				})
				index++
			}
		}
	}

	return out, nil
}

// needsFallback reports whether the document has neither headings nor
// any non-paragraph structure, triggering the degraded fallback path of
// spec.md §4.1 step 6.
func needsFallback(blocks []block) bool {
	for _, b := range blocks {
		if b.Type != blockParagraph {
			return false
		}
	}
	return true
}

// fallbackChunk degrades to a paragraph-split parent/child chunker
// without breadcrumbs, used when the document lacks heading structure or
// block parsing raised.
func fallbackChunk(documentID, text string, sizes Sizes) []Chunk {
	paras := splitProtected(text)
	parentSegments := groupIntoSegments(paras, sizes.ParentSize, sizes.MaxChunkSize)

	index := 0
	var out []Chunk

	for _, segment := range parentSegments {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		parentID := uuid.New().String()
		out = append(out, Chunk{
			ID:         parentID,
			DocumentID: documentID,
			Content:    segment,
			ChunkIndex: index,
			TokenCount: EstimateTokenCount(segment),
			ChunkType:  ChunkTypeParent,
			CreatedAt:  time.Now().UTC(),
		})
		index++

		children := groupIntoSegments(splitProtected(segment), sizes.ChildSize, sizes.MaxChunkSize)
		totalChildren := len(children)
		for childIdx, childSegment := range children {
			if strings.TrimSpace(childSegment) == "" {
				continue
			}
			ci, tc := childIdx, totalChildren
			out = append(out, Chunk{
				ID:         uuid.New().String(),
				DocumentID: documentID,
				Content:    childSegment,
				ChunkIndex: index,
				TokenCount: EstimateTokenCount(childSegment),
				ChunkType:  ChunkTypeChild,
				ParentID:   parentID,
				Metadata:   ChunkMetadata{ChildIndex: &ci, TotalChildren: &tc},
				CreatedAt:  time.Now().UTC(),
			})
			index++
		}
	}

	return out
}

// breadcrumbBanner renders the "[crumb1 > crumb2](i/N)?" prefix for a
// parent chunk. The segment suffix is only included when the section's
// content was split into more than one parent segment.
func breadcrumbBanner(breadcrumbs []string, segIdx, totalSegments int) string {
	if len(breadcrumbs) == 0 {
		return ""
	}
	banner := "[" + strings.Join(breadcrumbs, " > ") + "]"
	if totalSegments > 1 {
		banner += "(" + strconv.Itoa(segIdx+1) + "/" + strconv.Itoa(totalSegments) + ")"
	}
	return banner
}
