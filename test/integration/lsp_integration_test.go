//go:build integration
// +build integration

package integration

import (
	"context"
	"testing"

	"github.com/forgescript/forgescript-lsp/internal/document"
	"github.com/forgescript/forgescript-lsp/internal/lsp"
	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// setupTestService wires a fresh Service with a metadata snapshot seeded
// entirely from custom functions, so tests never touch the network.
func setupTestService(t *testing.T, custom []metadata.CustomFunction) *document.Service {
	t.Helper()

	fetcher, err := metadata.NewFetcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}
	manager := metadata.NewManager(fetcher)
	manager.Load(context.Background(), nil, custom)

	svc := document.New(manager)
	lsp.SetService(svc)
	return svc
}

func openDocument(t *testing.T, ctx *glsp.Context, uri, text string) {
	t.Helper()
	err := lsp.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: "forgescript",
			Version:    1,
			Text:       text,
		},
	})
	if err != nil {
		t.Fatalf("DidOpen failed: %v", err)
	}
}

func banFunction() metadata.CustomFunction {
	return metadata.CustomFunction{
		Name:        "$ban",
		Description: "Bans a user from the guild.",
		Params: []metadata.CustomParam{
			{Name: "user", Required: true},
			{Name: "reason", Required: false},
		},
	}
}

func TestHoverIntegration_KnownFunction(t *testing.T) {
	setupTestService(t, []metadata.CustomFunction{banFunction()})

	uri := "file:///test/ban.fs"
	code := "code: `$ban[123;spam]`"
	ctx := &glsp.Context{}
	openDocument(t, ctx, uri, code)

	hover, err := lsp.Hover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: 10},
		},
	})
	if err != nil {
		t.Fatalf("Hover failed: %v", err)
	}
	if hover == nil {
		t.Fatal("expected hover result for $ban")
	}

	content, ok := hover.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("expected MarkupContent, got %T", hover.Contents)
	}
	if !containsSubstring(content.Value, "$ban") {
		t.Errorf("expected hover to mention $ban, got: %s", content.Value)
	}
}

func TestHoverIntegration_UnknownFunctionReturnsNil(t *testing.T) {
	setupTestService(t, nil)

	uri := "file:///test/unknown.fs"
	code := "code: `$nope[1]`"
	ctx := &glsp.Context{}
	openDocument(t, ctx, uri, code)

	hover, err := lsp.Hover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: 10},
		},
	})
	if err != nil {
		t.Fatalf("Hover failed: %v", err)
	}
	if hover != nil {
		t.Errorf("expected nil hover for unknown function, got %+v", hover)
	}
}

func TestCompletionIntegration_ListsCustomFunctionWithModifier(t *testing.T) {
	setupTestService(t, []metadata.CustomFunction{banFunction()})

	uri := "file:///test/completion.fs"
	code := "code: `$!`"
	ctx := &glsp.Context{}
	openDocument(t, ctx, uri, code)

	result, err := lsp.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: uint32(len(code))},
		},
	})
	if err != nil {
		t.Fatalf("Completion failed: %v", err)
	}

	list, ok := result.(*protocol.CompletionList)
	if !ok {
		t.Fatalf("expected *protocol.CompletionList, got %T", result)
	}

	found := false
	for _, item := range list.Items {
		if item.Label == "$!ban" {
			found = true
			if item.FilterText == nil || *item.FilterText != "ban" {
				t.Errorf("expected filter text 'ban', got %v", item.FilterText)
			}
		}
	}
	if !found {
		t.Error("expected a $!ban completion entry")
	}
}

func TestSignatureHelpIntegration_MarksActiveParameter(t *testing.T) {
	setupTestService(t, []metadata.CustomFunction{banFunction()})

	uri := "file:///test/sighelp.fs"
	code := "code: `$ban[123;`"
	ctx := &glsp.Context{}
	openDocument(t, ctx, uri, code)

	help, err := lsp.SignatureHelp(ctx, &protocol.SignatureHelpParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: uint32(len(code))},
		},
	})
	if err != nil {
		t.Fatalf("SignatureHelp failed: %v", err)
	}
	if help == nil {
		t.Fatal("expected signature help result")
	}
	if help.ActiveParameter == nil || *help.ActiveParameter != 1 {
		t.Errorf("expected active parameter 1, got %v", help.ActiveParameter)
	}
	if len(help.Signatures) != 1 {
		t.Fatalf("expected exactly one signature, got %d", len(help.Signatures))
	}
}

func TestSemanticTokensIntegration_ReturnsNonEmptyData(t *testing.T) {
	setupTestService(t, []metadata.CustomFunction{banFunction()})

	uri := "file:///test/tokens.fs"
	code := "code: `$ban[123;spam]`"
	ctx := &glsp.Context{}
	openDocument(t, ctx, uri, code)

	tokens, err := lsp.SemanticTokensFull(ctx, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	if err != nil {
		t.Fatalf("SemanticTokensFull failed: %v", err)
	}
	if tokens == nil || len(tokens.Data) == 0 {
		t.Error("expected non-empty semantic token data")
	}
}

func TestDidCloseIntegration_ForgetsDocument(t *testing.T) {
	setupTestService(t, []metadata.CustomFunction{banFunction()})

	uri := "file:///test/close.fs"
	ctx := &glsp.Context{}
	openDocument(t, ctx, uri, "code: `$ban[1]`")

	err := lsp.DidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	if err != nil {
		t.Fatalf("DidClose failed: %v", err)
	}

	hover, err := lsp.Hover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: 10},
		},
	})
	if err != nil {
		t.Fatalf("Hover after close failed: %v", err)
	}
	if hover != nil {
		t.Error("expected no hover result after document was closed")
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return len(substr) == 0
}
