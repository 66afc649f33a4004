package lsp

import (
	"github.com/forgescript/forgescript-lsp/internal/document"
	"github.com/forgescript/forgescript-lsp/internal/logging"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// DidOpen handles textDocument/didOpen: stores the document, parses it,
// and publishes diagnostics.
func DidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) (err error) {
	defer guard("DidOpen")

	if serverInstance == nil {
		return nil
	}

	uri := string(params.TextDocument.URI)
	text := params.TextDocument.Text
	version := int(params.TextDocument.Version)

	result := serverInstance.Open(uri, text, version)
	PublishDiagnostics(ctx, uri, toProtocolDiagnostics(text, result.Diagnostics))

	return nil
}

// DidClose handles textDocument/didClose: forgets the document and clears
// its diagnostics in the editor.
func DidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) (err error) {
	defer guard("DidClose")

	if serverInstance == nil {
		return nil
	}

	uri := string(params.TextDocument.URI)
	serverInstance.Close(uri)

	if ctx != nil && ctx.Notify != nil {
		ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: []protocol.Diagnostic{},
		})
	}

	return nil
}

// DidChange handles textDocument/didChange. The server advertises full
// document sync only, so every content-change event carries the whole
// new text; incremental ranges are never sent.
func DidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) (err error) {
	defer guard("DidChange")

	if serverInstance == nil {
		return nil
	}

	uri := string(params.TextDocument.URI)
	version := int(params.TextDocument.Version)

	var newText string
	for _, changeInterface := range params.ContentChanges {
		if change, ok := changeInterface.(protocol.TextDocumentContentChangeEvent); ok {
			newText = change.Text
		}
	}

	result := serverInstance.Change(uri, newText, version)
	PublishDiagnostics(ctx, uri, toProtocolDiagnostics(newText, result.Diagnostics))

	return nil
}

// DidChangeWatchedFiles handles workspace/didChangeWatchedFiles for the
// registered forgeconfig.json / custom-functions-path watchers, reloading
// metadata and republishing diagnostics for every open document.
func DidChangeWatchedFiles(ctx *glsp.Context, params *protocol.DidChangeWatchedFilesParams) (err error) {
	defer guard("DidChangeWatchedFiles")

	if serverInstance == nil {
		return nil
	}

	for _, change := range params.Changes {
		removed := change.Type == protocol.FileChangeTypeDeleted
		path, convErr := document.URIToPath(string(change.URI))
		if convErr != nil {
			continue
		}
		if err := serverInstance.WatchedFileChanged(path, removed); err != nil {
			logging.Warn("failed to reload watched file "+path, err)
		}
	}

	for uri, result := range serverInstance.ReparseAll() {
		if src, ok := serverInstance.Source(uri); ok {
			PublishDiagnostics(ctx, uri, toProtocolDiagnostics(src.Text, result.Diagnostics))
		}
	}

	return nil
}
