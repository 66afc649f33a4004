package lsp

import (
	"sort"
	"unicode/utf8"

	"github.com/forgescript/forgescript-lsp/internal/logging"
	"github.com/forgescript/forgescript-lsp/internal/parser"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// offsetToPosition converts a byte offset in text into an LSP
// (line, character) position. Every syntactic byte the parser inspects
// is ASCII, so a rune count is a valid stand-in for UTF-16 code units.
func offsetToPosition(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}

	line := uint32(0)
	lineStart := 0
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}

	character := uint32(utf8.RuneCountInString(text[lineStart:offset]))
	return protocol.Position{Line: line, Character: character}
}

// toProtocolDiagnostics converts the parser's byte-range diagnostics into
// LSP line/character diagnostics against source.
func toProtocolDiagnostics(source string, diags []parser.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == parser.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: offsetToPosition(source, d.Start),
				End:   offsetToPosition(source, d.End),
			},
			Severity: &severity,
			Message:  d.Message,
		})
	}
	return out
}

// PublishDiagnostics sends diagnostic information to the client for a
// specific document.
func PublishDiagnostics(ctx *glsp.Context, uri string, diagnostics []protocol.Diagnostic) {
	if ctx == nil || ctx.Notify == nil {
		logging.Warn("cannot publish diagnostics: no notify channel", nil)
		return
	}

	sortDiagnostics(diagnostics)

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// sortDiagnostics orders diagnostics by position for a stable client view.
func sortDiagnostics(diagnostics []protocol.Diagnostic) {
	sort.Slice(diagnostics, func(i, j int) bool {
		if diagnostics[i].Range.Start.Line != diagnostics[j].Range.Start.Line {
			return diagnostics[i].Range.Start.Line < diagnostics[j].Range.Start.Line
		}
		return diagnostics[i].Range.Start.Character < diagnostics[j].Range.Start.Character
	})
}
