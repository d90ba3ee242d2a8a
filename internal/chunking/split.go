package chunking

import (
	"regexp"
	"strings"
)

var sentenceBoundaryRe = regexp.MustCompile(`([.!?。！？])\s*`)

// paragraph is one unit produced by splitProtected: either ordinary prose
// or a protected (never-split) block rendered as a single string.
type paragraph struct {
	Text      string
	Protected bool
}

// splitProtected splits materialized section text on blank lines while
// keeping fenced code blocks and rendered tables intact as single
// paragraphs, mirroring the teacher corpus's fence-aware paragraph
// splitter but extended to the table sentinel markers this chunker emits.
func splitProtected(content string) []paragraph {
	parts := strings.Split(content, "\n\n")
	var out []paragraph

	var acc strings.Builder
	state := "" // "", "code", "table"

	flush := func(protected bool) {
		if acc.Len() == 0 {
			return
		}
		out = append(out, paragraph{Text: acc.String(), Protected: protected})
		acc.Reset()
	}

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		switch state {
		case "code":
			if acc.Len() > 0 {
				acc.WriteString("\n\n")
			}
			acc.WriteString(part)
			if strings.Contains(part, "```") || strings.Contains(part, "~~~") {
				flush(true)
				state = ""
			}
			continue
		case "table":
			if acc.Len() > 0 {
				acc.WriteString("\n\n")
			}
			acc.WriteString(part)
			if strings.Contains(part, "[表格结束]") {
				flush(true)
				state = ""
			}
			continue
		}

		opensCode := strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
		closesCode := opensCode && strings.Count(trimmed, "```")+strings.Count(trimmed, "~~~") >= 2
		opensTable := strings.Contains(trimmed, "[表格开始]")
		closesTable := strings.Contains(trimmed, "[表格结束]")

		switch {
		case opensCode && closesCode:
			flush(false)
			out = append(out, paragraph{Text: part, Protected: true})
		case opensCode:
			flush(false)
			acc.WriteString(part)
			state = "code"
		case opensTable && closesTable:
			flush(false)
			out = append(out, paragraph{Text: part, Protected: true})
		case opensTable:
			flush(false)
			acc.WriteString(part)
			state = "table"
		default:
			flush(false)
			out = append(out, paragraph{Text: part, Protected: false})
		}
	}
	flush(state != "")

	return out
}

// splitSentences splits prose on Chinese and Latin sentence terminators.
func splitSentences(text string) []string {
	matches := sentenceBoundaryRe.Split(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// groupIntoSegments greedily packs paragraphs into segments no longer
// than targetSize, with a hard cap of maxSize. A single oversized,
// non-protected paragraph is further split at sentence boundaries.
// Protected paragraphs are never split, even past the hard cap (spec.md
// §4.1 step 4 and the 50KB-code-fence edge case in §8).
func groupIntoSegments(paras []paragraph, targetSize, maxSize int) []string {
	var segments []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}

	appendPiece := func(piece string) {
		if cur.Len() > 0 {
			candidate := cur.Len() + 2 + len(piece)
			if candidate > targetSize {
				flush()
			}
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(piece)
	}

	for _, p := range paras {
		if p.Protected {
			// Never split; if it alone exceeds the target, it still gets
			// its own segment rather than being merged past the cap.
			if cur.Len() > 0 && cur.Len()+2+len(p.Text) > targetSize {
				flush()
			}
			if len(p.Text) > targetSize {
				flush()
				segments = append(segments, strings.TrimSpace(p.Text))
				continue
			}
			appendPiece(p.Text)
			continue
		}

		if len(p.Text) <= targetSize {
			appendPiece(p.Text)
			continue
		}

		// Oversized ordinary paragraph: a list is split between items,
		// never within one (spec.md §4.1 edge case), everything else
		// falls back to sentence splitting.
		flush()
		if isListText(p.Text) {
			for _, item := range splitListItems(p.Text) {
				segments = append(segments, strings.TrimSpace(item))
			}
			continue
		}
		sentences := splitSentences(p.Text)
		if len(sentences) <= 1 {
			// No sentence boundary found; hard-cut at maxSize as a last resort.
			segments = append(segments, chunkBySize(p.Text, maxSize)...)
			continue
		}
		var sb strings.Builder
		for _, s := range sentences {
			if sb.Len() > 0 && sb.Len()+1+len(s) > targetSize {
				segments = append(segments, strings.TrimSpace(sb.String()))
				sb.Reset()
			}
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(s)
		}
		if sb.Len() > 0 {
			segments = append(segments, strings.TrimSpace(sb.String()))
		}
	}
	flush()

	return segments
}

// isListText reports whether text is (close to) an ordered/unordered list,
// i.e. most of its non-blank lines open a new list item.
func isListText(text string) bool {
	lines := strings.Split(text, "\n")
	itemLines, total := 0, 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		total++
		if listRe.MatchString(l) {
			itemLines++
		}
	}
	return total > 0 && itemLines > 0 && itemLines*2 >= total
}

// splitListItems splits list text into one string per item, each item
// carrying its own indented/blank continuation lines. A single item is
// never split further, even past the target size, so that list-item
// granularity is preserved (spec.md §4.1 edge case).
func splitListItems(text string) []string {
	lines := strings.Split(text, "\n")
	var items []string
	var cur []string

	flush := func() {
		if len(cur) > 0 {
			items = append(items, strings.Join(cur, "\n"))
			cur = nil
		}
	}

	for _, l := range lines {
		if listRe.MatchString(l) {
			flush()
			cur = append(cur, l)
		} else {
			cur = append(cur, l)
		}
	}
	flush()

	if len(items) == 0 {
		return []string{text}
	}
	return items
}

// chunkBySize hard-cuts text into pieces no longer than size, used only
// when no paragraph or sentence boundary exists at all.
func chunkBySize(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
