package chunking

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// blockType classifies a contiguous run of source lines.
type blockType string

const (
	blockHeading    blockType = "heading"
	blockCode       blockType = "code_block"
	blockTable      blockType = "table"
	blockHTMLTable  blockType = "html_table"
	blockList       blockType = "list"
	blockBlockquote blockType = "blockquote"
	blockHR         blockType = "horizontal_rule"
	blockParagraph  blockType = "paragraph"
)

// block is one atomic unit produced by the goldmark-driven classification
// pass. Fenced code blocks and tables are always atomic: parseBlocks never
// splits them into smaller blocks.
type block struct {
	Type  blockType
	Level int // heading level, 0 otherwise
	Title string
	Lines []string
}

var mdParser = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Table),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// listRe recognizes a list-item opening line; used by split.go's
// list-shape heuristic on already-extracted paragraph text, where no AST
// is available any more.
var listRe = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s+`)

// parseBlocks classifies a document's top-level block structure by parsing
// it with goldmark and walking the resulting AST (spec.md §4.1 step 1),
// the same approach the pack's markdown chunker uses for heading/code/
// list/table classification. Only the HTML `<table>` case — which
// goldmark represents as an opaque ast.KindHTMLBlock span rather than a
// structured table — is classified by inspecting the raw span text, since
// no further AST structure is available to drive that distinction.
func parseBlocks(content string) []block {
	source := []byte(content)
	reader := text.NewReader(source)
	doc := mdParser.Parser().Parse(reader)

	var blocks []block
	var stack []ast.Node
	for n := doc.LastChild(); n != nil; n = n.PreviousSibling() {
		stack = append(stack, n)
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if b, ok := classifyNode(n, source); ok {
			blocks = append(blocks, b)
			continue
		}

		// Not a block-level node we classify on its own (e.g. the
		// document root, or a block container goldmark doesn't surface
		// as one of our types): descend into its children instead.
		for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
			stack = append(stack, c)
		}
	}

	if len(blocks) == 0 && strings.TrimSpace(content) != "" {
		blocks = append(blocks, block{Type: blockParagraph, Lines: strings.Split(content, "\n")})
	}

	return blocks
}

// classifyNode maps one top-level AST node to a block, extracting its raw
// source span the way the pack's chunker does (node.Lines() gives byte
// offsets into source; a node with Lines().Len() == 0, like a blank line,
// has no span to extract).
func classifyNode(n ast.Node, source []byte) (block, bool) {
	switch v := n.(type) {
	case *ast.Heading:
		return block{Type: blockHeading, Level: v.Level, Title: headingText(v, source), Lines: spanLines(n, source)}, true
	case *ast.FencedCodeBlock:
		// Lines() holds only the body; the fences are restored so the
		// splitter still sees the block as one protected unit.
		lines := append([]string{"```" + string(v.Language(source))}, spanLines(n, source)...)
		return block{Type: blockCode, Lines: append(lines, "```")}, true
	case *ast.CodeBlock:
		return block{Type: blockCode, Lines: spanLines(n, source)}, true
	case *ast.List:
		return block{Type: blockList, Lines: spanLines(n, source)}, true
	case *ast.Blockquote:
		return block{Type: blockBlockquote, Lines: spanLines(n, source)}, true
	case *ast.ThematicBreak:
		return block{Type: blockHR, Lines: spanLines(n, source)}, true
	case *extast.Table:
		return block{Type: blockTable, Lines: spanLines(n, source)}, true
	case *ast.HTMLBlock:
		lines := spanLines(n, source)
		if htmlLooksLikeTable(lines) {
			return block{Type: blockHTMLTable, Lines: lines}, true
		}
		return block{Type: blockParagraph, Lines: lines}, true
	case *ast.Paragraph:
		return block{Type: blockParagraph, Lines: spanLines(n, source)}, true
	default:
		return block{}, false
	}
}

func htmlLooksLikeTable(lines []string) bool {
	joined := strings.ToLower(strings.Join(lines, "\n"))
	return strings.Contains(joined, "<table")
}

// spanLines extracts a node's raw source lines from its Lines() byte
// segments, the same position-extraction the pack's chunker performs.
func spanLines(n ast.Node, source []byte) []string {
	hasLines, ok := n.(interface{ Lines() *text.Segments })
	if !ok {
		return nil
	}
	segs := hasLines.Lines()
	if segs.Len() == 0 {
		return nil
	}
	start := segs.At(0).Start
	stop := segs.At(segs.Len() - 1).Stop
	if stop > len(source) || start > stop {
		return nil
	}
	raw := string(source[start:stop])
	raw = strings.TrimRight(raw, "\n")
	return strings.Split(raw, "\n")
}

// headingText extracts a heading's plain text by walking its inline
// children, mirroring the pack's extractTextFromNode.
func headingText(h *ast.Heading, source []byte) string {
	var buf bytes.Buffer
	var stack []ast.Node
	for c := h.LastChild(); c != nil; c = c.PreviousSibling() {
		stack = append(stack, c)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t, ok := n.(*ast.Text); ok {
			seg := t.Segment
			if seg.Stop <= len(source) {
				buf.Write(seg.Value(source))
			}
			continue
		}
		for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
			stack = append(stack, c)
		}
	}
	return strings.TrimSpace(buf.String())
}

// isProtected reports whether a block must never be split across chunks.
func (b block) isProtected() bool {
	return b.Type == blockCode || b.Type == blockTable || b.Type == blockHTMLTable
}

// render reconstitutes a block's textual form. Tables are re-emitted in a
// line-oriented "row N: col=val, ..." form per spec.md §4.1 step 3; tables
// with mismatched header/row cell counts fall back to "col | col | ..." form.
func (b block) render() string {
	switch b.Type {
	case blockTable:
		return renderTable(b.Lines)
	default:
		return strings.Join(b.Lines, "\n")
	}
}

func renderTable(lines []string) string {
	if len(lines) < 2 {
		return strings.Join(lines, "\n")
	}
	header := splitCells(lines[0])
	var out strings.Builder
	out.WriteString("[表格开始]\n")
	rowN := 0
	for _, line := range lines[2:] {
		cells := splitCells(line)
		rowN++
		if len(cells) != len(header) {
			out.WriteString(strings.Join(cells, " | "))
			out.WriteString("\n")
			continue
		}
		out.WriteString("row ")
		out.WriteString(strconv.Itoa(rowN))
		out.WriteString(": ")
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = header[i] + "=" + c
		}
		out.WriteString(strings.Join(parts, ", "))
		out.WriteString("\n")
	}
	out.WriteString("[表格结束]")
	return out.String()
}

func splitCells(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
