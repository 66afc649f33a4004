package lsp

import (
	"fmt"
	"strings"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/forgescript/forgescript-lsp/internal/parser"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// identByte reports whether c may appear in the hover identifier class
// [A-Za-z0-9_.$].
func identByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '.' || c == '$'
}

// positionToOffset converts an LSP (line, character) position into a byte
// offset in text, counting characters as runes like offsetToPosition.
func positionToOffset(text string, pos protocol.Position) int {
	line, char := 0, 0
	for i := 0; i < len(text); i++ {
		if text[i]&0xC0 == 0x80 {
			continue // UTF-8 continuation byte: part of the previous rune
		}
		if uint32(line) == pos.Line && uint32(char) == pos.Character {
			return i
		}
		if text[i] == '\n' {
			line++
			char = 0
		} else {
			char++
		}
	}
	return len(text)
}

// Hover handles textDocument/hover: expands the identifier under the
// cursor, resolves it against the metadata trie, and renders a markdown
// signature card.
func Hover(ctx *glsp.Context, params *protocol.HoverParams) (result *protocol.Hover, err error) {
	defer guard("Hover")

	if serverInstance == nil {
		return nil, nil
	}

	uri := string(params.TextDocument.URI)
	src, ok := serverInstance.Source(uri)
	if !ok {
		return nil, nil
	}

	offset := positionToOffset(src.Text, params.Position)
	start, end := expandIdentifier(src.Text, offset)
	if start == end {
		return nil, nil
	}

	dollarIdx := strings.LastIndexByte(src.Text[start:end], '$')
	if dollarIdx == -1 {
		return nil, nil
	}
	dollarIdx += start
	if parser.IsEscapedDSLSpecial(src.Text, dollarIdx) {
		return nil, nil
	}

	snapshot := serverInstance.Snapshot()
	key := strings.ToLower(src.Text[dollarIdx:end])
	fn, matched := lookupHover(snapshot, key)
	if !matched || fn == nil {
		return nil, nil
	}
	if fn.IsComment() || fn.IsEscapeFunction() {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: renderHoverMarkdown(fn),
		},
	}, nil
}

// lookupHover resolves key against the trie via GetExact first (the token
// under the cursor may already be the whole call), falling back to the
// longest-match search so a partial identifier still resolves.
func lookupHover(snapshot *metadata.Snapshot, key string) (*metadata.Function, bool) {
	if fn, ok := snapshot.Trie.GetExact(key); ok {
		return fn, true
	}
	_, fn, ok := snapshot.Trie.Get(key)
	return fn, ok
}

// expandIdentifier widens [start,end) around offset over the identifier
// class, stopping at a `$` that would itself be escaped.
func expandIdentifier(text string, offset int) (int, int) {
	if offset > len(text) {
		offset = len(text)
	}

	start := offset
	for start > 0 && identByte(text[start-1]) {
		if text[start-1] == '$' && parser.IsEscapedDSLSpecial(text, start-1) {
			break
		}
		start--
	}

	end := offset
	for end < len(text) && identByte(text[end]) {
		end++
	}

	return start, end
}

func renderHoverMarkdown(fn *metadata.Function) string {
	var sb strings.Builder

	sb.WriteString("```\n")
	sb.WriteString(fn.SignatureLabel())
	sb.WriteString("\n```\n")

	if fn.Brackets == metadata.BracketsOptional {
		sb.WriteString("\n_Brackets optional._\n")
	}

	if fn.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(fn.Description)
		sb.WriteString("\n")
	}

	examples := fn.Examples
	if len(examples) > 2 {
		examples = examples[:2]
	}
	for _, ex := range examples {
		sb.WriteString("\n```\n")
		sb.WriteString(ex)
		sb.WriteString("\n```\n")
	}

	if footer := linkFooter(fn); footer != "" {
		sb.WriteString("\n")
		sb.WriteString(footer)
	}

	return sb.String()
}

// linkFooter renders the "GitHub | Documentation" footer line when the
// function carries source metadata.
func linkFooter(fn *metadata.Function) string {
	if fn.SourceURL == "" && fn.Extension == "" {
		return ""
	}

	var parts []string
	if fn.SourceURL != "" {
		parts = append(parts, fmt.Sprintf("[GitHub](%s)", fn.SourceURL))
	}
	if fn.Extension != "" {
		parts = append(parts, fmt.Sprintf("Documentation: `%s`", fn.Extension))
	}
	return strings.Join(parts, " | ")
}
