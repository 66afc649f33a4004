package lsp

import (
	"fmt"
	"strings"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// SignatureHelp handles textDocument/signatureHelp: it finds the nearest
// unmatched `[` enclosing the cursor, resolves the preceding `$name`
// against the metadata trie, and builds a single-signature response with
// the active parameter marked.
func SignatureHelp(ctx *glsp.Context, params *protocol.SignatureHelpParams) (result *protocol.SignatureHelp, err error) {
	defer guard("SignatureHelp")

	if serverInstance == nil {
		return nil, nil
	}

	uri := string(params.TextDocument.URI)
	src, ok := serverInstance.Source(uri)
	if !ok {
		return nil, nil
	}

	offset := positionToOffset(src.Text, params.Position)
	snapshot := serverInstance.Snapshot()

	call, fn, ok := resolveActiveCall(src.Text, offset, snapshot)
	if !ok {
		return nil, nil
	}

	sig := buildSignature(fn)
	activeParam := uint32(call.ArgIndex)

	return &protocol.SignatureHelp{
		Signatures:      []protocol.SignatureInformation{sig},
		ActiveSignature: uintPtr(0),
		ActiveParameter: &activeParam,
	}, nil
}

func uintPtr(v uint32) *uint32 {
	return &v
}

func buildSignature(fn *metadata.Function) protocol.SignatureInformation {
	label := fn.SignatureLabel()

	params := make([]protocol.ParameterInformation, 0, len(fn.Args))
	for _, a := range fn.Args {
		params = append(params, protocol.ParameterInformation{
			Label: a.Name,
			Documentation: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: renderParamDocumentation(a),
			},
		})
	}

	var docPtr *protocol.MarkupContent
	if fn.Description != "" {
		docPtr = &protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: fn.Description}
	}

	return protocol.SignatureInformation{
		Label:         label,
		Documentation: docPtr,
		Parameters:    params,
	}
}

// renderParamDocumentation appends a bullet list of allowed values under a
// parameter's own description when it carries an enum.
func renderParamDocumentation(a metadata.Arg) string {
	var sb strings.Builder
	sb.WriteString(a.Description)

	if len(a.Enum) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Allowed values:\n")
		for _, v := range a.Enum {
			sb.WriteString(fmt.Sprintf("- `%s`\n", v))
		}
	}

	return sb.String()
}
