// Package lsp implements the ForgeScript LSP protocol handlers:
// - Initialize / Initialized / Shutdown
// - textDocument/didOpen, didClose, didChange
// - textDocument/hover, completion, signatureHelp
// - textDocument/semanticTokens/full
package lsp
