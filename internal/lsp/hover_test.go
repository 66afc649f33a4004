package lsp

import (
	"testing"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/stretchr/testify/assert"
)

func TestPositionToOffsetHandlesMultipleLines(t *testing.T) {
	text := "abc\ndef\nghi"
	offset := positionToOffset(text, protocol.Position{Line: 1, Character: 2})
	assert.Equal(t, 6, offset)
}

func TestExpandIdentifierIncludesDollarAndUnderscore(t *testing.T) {
	text := "prefix $my_func suffix"
	start, end := expandIdentifier(text, 10)
	assert.Equal(t, "$my_func", text[start:end])
}

func TestExpandIdentifierStopsAtEscapedDollar(t *testing.T) {
	text := `\\$ping`
	start, end := expandIdentifier(text, len(text))
	assert.Equal(t, "ping", text[start:end])
}

func TestLookupHoverPrefersExactMatch(t *testing.T) {
	trie := metadata.NewTrie()
	trie.Insert("$ban", &metadata.Function{Name: "$ban"})
	trie.Insert("$banall", &metadata.Function{Name: "$banall"})
	snapshot := &metadata.Snapshot{Trie: trie, Enums: map[string][]string{}}

	fn, ok := lookupHover(snapshot, "$ban")
	assert.True(t, ok)
	assert.Equal(t, "$ban", fn.Name)
}

func TestRenderHoverMarkdownIncludesSignatureAndDescription(t *testing.T) {
	fn := &metadata.Function{
		Name:        "$ban",
		Brackets:    metadata.BracketsRequired,
		Description: "Bans a user.",
		Args:        []metadata.Arg{{Name: "user", Required: true}},
	}

	md := renderHoverMarkdown(fn)
	assert.Contains(t, md, "$ban[user]")
	assert.Contains(t, md, "Bans a user.")
}

func TestRenderHoverMarkdownLimitsExamplesToTwo(t *testing.T) {
	fn := &metadata.Function{
		Name:     "$ban",
		Brackets: metadata.BracketsRequired,
		Examples: []string{"$ban[1]", "$ban[2]", "$ban[3]"},
	}

	md := renderHoverMarkdown(fn)
	assert.Contains(t, md, "$ban[1]")
	assert.Contains(t, md, "$ban[2]")
	assert.NotContains(t, md, "$ban[3]")
}

func TestLinkFooterEmptyWithoutSourceMetadata(t *testing.T) {
	fn := &metadata.Function{Name: "$ban"}
	assert.Empty(t, linkFooter(fn))
}

func TestLinkFooterRendersBothLinks(t *testing.T) {
	fn := &metadata.Function{
		Name:      "$ban",
		SourceURL: "https://example.com/functions.json",
		Extension: "moderation",
	}

	footer := linkFooter(fn)
	assert.Contains(t, footer, "GitHub")
	assert.Contains(t, footer, "moderation")
}
