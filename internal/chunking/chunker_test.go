package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultSizes() Sizes {
	return Sizes{MaxChunkSize: 4000, ParentSize: 2000, ChildSize: 600}
}

func TestChunk_EmptyInput(t *testing.T) {
	chunks, err := Chunk("doc-1", "   \n\t  ", defaultSizes())
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestChunk_HeadingsProduceOneParentPerSection(t *testing.T) {
	text := "# A\ntext under A\n## B\ntext under B"
	chunks, err := Chunk("doc-1", text, defaultSizes())
	require.NoError(t, err)

	var parents []Chunk
	for _, c := range chunks {
		if c.ChunkType == ChunkTypeParent {
			parents = append(parents, c)
		}
	}
	require.GreaterOrEqual(t, len(parents), 2)

	require.True(t, strings.HasPrefix(parents[0].Content, "[A]"))
	require.True(t, strings.HasPrefix(parents[1].Content, "[A > B]"))
}

func TestChunk_EveryChildResolvesToAParent(t *testing.T) {
	text := "# Intro\n\nsome content here that is reasonably long so it forms a child.\n\n## Details\n\nmore content under details."
	chunks, err := Chunk("doc-1", text, defaultSizes())
	require.NoError(t, err)

	parentIDs := map[string]bool{}
	for _, c := range chunks {
		if c.ChunkType == ChunkTypeParent {
			parentIDs[c.ID] = true
		}
	}
	for _, c := range chunks {
		if c.ChunkType == ChunkTypeChild {
			require.True(t, parentIDs[c.ParentID], "child %s references unknown parent %s", c.ID, c.ParentID)
		}
	}
}

func TestChunk_ChunkIndexIsMonotonic(t *testing.T) {
	text := "# A\npara one\n\npara two\n\n# B\npara three"
	chunks, err := Chunk("doc-1", text, defaultSizes())
	require.NoError(t, err)

	for i, c := range chunks {
		require.Equal(t, i, c.ChunkIndex)
	}
}

func TestChunk_UnclosedCodeFenceAbsorbsToEOF(t *testing.T) {
	text := "# Example\n\n```bash\nnv set interface swp1 link state up\nnv config apply\n"
	chunks, err := Chunk("doc-1", text, defaultSizes())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	found := false
	for _, c := range chunks {
		if strings.Contains(c.Content, "nv config apply") {
			found = true
		}
	}
	require.True(t, found)
}

func TestChunk_LargeCodeFenceStaysIntact(t *testing.T) {
	var body strings.Builder
	body.WriteString("```\n")
	for i := 0; i < 2000; i++ {
		body.WriteString("set interface line of config output here\n")
	}
	body.WriteString("```")
	text := body.String()

	chunks, err := Chunk("doc-1", text, defaultSizes())
	require.NoError(t, err)

	var parents, children int
	for _, c := range chunks {
		if c.ChunkType == ChunkTypeParent {
			parents++
			require.Contains(t, c.Content, "```")
		} else {
			children++
		}
	}
	require.Equal(t, 1, parents)
	require.Equal(t, 1, children)
}

func TestChunk_MismatchedTableFallsBackToPipeForm(t *testing.T) {
	text := "| a | b |\n| --- | --- |\n| 1 | 2 | 3 |"
	chunks, err := Chunk("doc-1", text, defaultSizes())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	require.Contains(t, chunks[0].Content, "|")
}

func TestChunk_FallsBackWithoutHeadings(t *testing.T) {
	text := "Just a plain paragraph of text.\n\nAnother plain paragraph, no structure at all."
	chunks, err := Chunk("doc-1", text, defaultSizes())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.Empty(t, c.Metadata.Breadcrumbs)
	}
}

func TestChunk_LargeDocumentRespectsSizeCaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("## Section\n")
		for j := 0; j < 40; j++ {
			b.WriteString("This is a line of section content used to pad out the section body. ")
		}
		b.WriteString("\n\n")
	}

	sizes := Sizes{MaxChunkSize: 4000, ParentSize: 3000, ChildSize: 800}
	chunks, err := Chunk("doc-1", b.String(), sizes)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		require.NotEmpty(t, c.Content)
		if c.ChunkType == ChunkTypeParent {
			require.LessOrEqual(t, len(c.Content), sizes.MaxChunkSize+200)
		} else {
			require.LessOrEqual(t, len(c.Content), sizes.MaxChunkSize+200)
		}
	}
}

func TestEstimateTokenCount(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"english", "hello world this is a test"},
		{"chinese", "你好世界"},
		{"mixed", "hello 世界"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			count := EstimateTokenCount(tc.text)
			require.GreaterOrEqual(t, count, 0)
		})
	}
}
