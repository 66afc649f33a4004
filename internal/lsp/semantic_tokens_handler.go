package lsp

import (
	"github.com/forgescript/forgescript-lsp/internal/semantic"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// SemanticTokensFull handles textDocument/semanticTokens/full: it re-scans
// the document's current source (not the cached parse tree, which the
// extractor does not need) and encodes the spans in LSP delta format.
func SemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (result *protocol.SemanticTokens, err error) {
	defer guard("SemanticTokensFull")

	if serverInstance == nil {
		return nil, nil
	}

	uri := string(params.TextDocument.URI)
	src, ok := serverInstance.Source(uri)
	if !ok {
		return nil, nil
	}

	snapshot := serverInstance.Snapshot()
	spans := semantic.Extract(src.Text, snapshot, serverInstance.MultiColor())
	data := semantic.ToRelative(src.Text, spans)

	return &protocol.SemanticTokens{Data: data}, nil
}
