package semantic

import (
	"testing"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *metadata.Snapshot {
	trie := metadata.NewTrie()
	trie.Insert("$ping", &metadata.Function{Name: "$ping", Brackets: metadata.BracketsRequired})
	trie.Insert("$c", &metadata.Function{Name: "$c", Brackets: metadata.BracketsRequired})
	trie.Insert("$esc", &metadata.Function{Name: "$esc", Brackets: metadata.BracketsRequired})
	return &metadata.Snapshot{Trie: trie, Enums: map[string][]string{}}
}

func TestExtractFunctionSpan(t *testing.T) {
	spans := Extract("$ping[example.com]", testSnapshot(), false)
	require.NotEmpty(t, spans)
	assert.Equal(t, TypeFunction, spans[0].Type)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 5, spans[0].End)
}

func TestExtractCommentSpanSwallowsWholeCall(t *testing.T) {
	spans := Extract("$c[fs@ignore-error]", testSnapshot(), false)
	require.Len(t, spans, 1)
	assert.Equal(t, TypeComment, spans[0].Type)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len("$c[fs@ignore-error]"), spans[0].End)
}

func TestExtractSemicolonAsKeyword(t *testing.T) {
	spans := Extract("a;b", testSnapshot(), false)
	require.Len(t, spans, 1)
	assert.Equal(t, TypeKeyword, spans[0].Type)
	assert.Equal(t, 1, spans[0].Start)
}

func TestExtractNumberSpan(t *testing.T) {
	spans := Extract("x 42 y", testSnapshot(), false)
	require.Len(t, spans, 1)
	assert.Equal(t, TypeNumber, spans[0].Type)
}

func TestExtractAlternatesFunctionColorWhenMultiColor(t *testing.T) {
	spans := Extract("$ping[a] $ping[b]", testSnapshot(), true)
	var fnTypes []TokenType
	for _, s := range spans {
		if s.Type == TypeFunction || s.Type == TypeAlternateFunction {
			fnTypes = append(fnTypes, s.Type)
		}
	}
	require.Len(t, fnTypes, 2)
	assert.Equal(t, TypeFunction, fnTypes[0])
	assert.Equal(t, TypeAlternateFunction, fnTypes[1])
}

func TestToRelativeEncodesDeltas(t *testing.T) {
	source := "$ping[a]\n$ping[b]"
	spans := Extract(source, testSnapshot(), false)
	data := ToRelative(source, spans)
	assert.NotEmpty(t, data)
	assert.Equal(t, 0, len(data)%5)
}
