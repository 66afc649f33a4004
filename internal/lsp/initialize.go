package lsp

import (
	"context"

	"github.com/forgescript/forgescript-lsp/internal/document"
	"github.com/forgescript/forgescript-lsp/internal/logging"
	"github.com/forgescript/forgescript-lsp/internal/semantic"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// serverInstance holds the process-wide document service. Set once by
// SetService before the transport starts serving requests.
var serverInstance *document.Service

// SetService sets the document service handlers dispatch against.
func SetService(svc *document.Service) {
	serverInstance = svc
}

// Initialize handles the LSP initialize request: loads forgeconfig.json
// from the workspace, fetches metadata, and advertises capabilities.
func Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (interface{}, error) {
	logging.Attach(ctx)

	var folders []string
	for _, f := range params.WorkspaceFolders {
		folders = append(folders, string(f.URI))
	}
	if len(folders) == 0 && params.RootURI != nil {
		folders = append(folders, string(*params.RootURI))
	}

	if serverInstance != nil {
		if err := serverInstance.Initialize(context.Background(), folders); err != nil {
			logging.Warn("initialize: failed to load metadata", err)
		}
	}

	trueVal := true
	changeKind := protocol.TextDocumentSyncKindFull

	capabilities := protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: &trueVal,
			Change:    &changeKind,
		},
		HoverProvider: &trueVal,
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: []string{"$", "."},
		},
		SignatureHelpProvider: &protocol.SignatureHelpOptions{
			TriggerCharacters:   []string{"$", "[", ";", ",", " "},
			RetriggerCharacters: []string{",", " "},
		},
		SemanticTokensProvider: &protocol.SemanticTokensOptions{
			Legend: protocol.SemanticTokensLegend{
				TokenTypes:     semantic.Legend,
				TokenModifiers: []string{},
			},
			Full: &trueVal,
		},
		Workspace: &protocol.ServerCapabilitiesWorkspace{
			WorkspaceFolders: &protocol.WorkspaceFoldersServerCapabilities{
				Supported: &trueVal,
			},
		},
	}

	serverVersion := "0.1.0"

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    "forgescript-lsp",
			Version: &serverVersion,
		},
	}, nil
}

// Initialized handles the initialized notification and registers interest
// in changes to forgeconfig.json and, when configured, the custom-functions
// file it points at, across the workspace.
func Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	if ctx == nil || ctx.Notify == nil {
		return nil
	}

	watchers := []map[string]interface{}{
		{"globPattern": "**/forgeconfig.json"},
	}
	if serverInstance != nil {
		if path := serverInstance.WatchedFunctionsPath(); path != "" {
			watchers = append(watchers, map[string]interface{}{"globPattern": path})
		}
	}

	ctx.Notify("client/registerCapability", map[string]interface{}{
		"registrations": []map[string]interface{}{
			{
				"id":     "forgescript-watched-files",
				"method": "workspace/didChangeWatchedFiles",
				"registerOptions": map[string]interface{}{
					"watchers": watchers,
				},
			},
		},
	})

	return nil
}

// Shutdown handles the shutdown request; there is no per-connection state
// to release beyond what garbage collection already reclaims.
func Shutdown(ctx *glsp.Context) error {
	return nil
}
