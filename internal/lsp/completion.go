package lsp

import (
	"strings"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Completion handles textDocument/completion. Inside an open bracket whose
// active parameter carries an enum, it offers the enum's values; otherwise
// it offers every known function, one entry per name, with the modifier
// folded into the label and insert text.
func Completion(ctx *glsp.Context, params *protocol.CompletionParams) (result any, err error) {
	defer guard("Completion")

	empty := &protocol.CompletionList{IsIncomplete: false, Items: []protocol.CompletionItem{}}

	if serverInstance == nil {
		return empty, nil
	}

	uri := string(params.TextDocument.URI)
	src, ok := serverInstance.Source(uri)
	if !ok {
		return empty, nil
	}

	offset := positionToOffset(src.Text, params.Position)
	snapshot := serverInstance.Snapshot()

	if call, fn, ok := resolveActiveCall(src.Text, offset, snapshot); ok {
		if arg, ok := activeArg(fn, call.ArgIndex); ok && !enumSkipped(fn, call.ArgIndex) {
			if allowed := resolveEnumValues(arg, snapshot); len(allowed) > 0 {
				return &protocol.CompletionList{IsIncomplete: false, Items: enumCompletionItems(allowed)}, nil
			}
		}
	}

	lineStart := strings.LastIndexByte(src.Text[:offset], '\n') + 1
	line := src.Text[lineStart:offset]

	dollarIdx := strings.LastIndexByte(line, '$')
	if dollarIdx == -1 {
		return empty, nil
	}

	modifier := ""
	if dollarIdx+1 < len(line) && (line[dollarIdx+1] == '!' || line[dollarIdx+1] == '.') {
		modifier = string(line[dollarIdx+1])
	}

	items := make([]protocol.CompletionItem, 0, snapshot.Trie.Size())
	for _, fn := range snapshot.Trie.AllValues() {
		if fn.IsComment() || fn.IsEscapeFunction() {
			continue
		}
		items = append(items, functionCompletionItem(fn, modifier))
	}

	return &protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

func functionCompletionItem(fn *metadata.Function, modifier string) protocol.CompletionItem {
	baseName := strings.TrimPrefix(fn.Name, "$")
	label := "$" + modifier + baseName
	insertText := modifier + baseName
	filterText := baseName
	kind := protocol.CompletionItemKindFunction
	detail := fn.Category
	doc := renderCompletionDocumentation(fn)

	return protocol.CompletionItem{
		Label:         label,
		Kind:          &kind,
		InsertText:    &insertText,
		FilterText:    &filterText,
		Detail:        &detail,
		Documentation: &protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: doc},
	}
}

func renderCompletionDocumentation(fn *metadata.Function) string {
	var sb strings.Builder
	sb.WriteString(fn.Description)
	if footer := linkFooter(fn); footer != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(footer)
	}
	return sb.String()
}

// enumSkipped reports whether idx is the `$color` first-argument exception
// carried over from the enum-validation exception list.
func enumSkipped(fn *metadata.Function, idx int) bool {
	return fn.Name == "$color" && idx == 0
}

// resolveEnumValues resolves an argument's allowed values the same way the
// parser's enum validation does: an inline Enum list takes precedence, and
// an EnumName falls back to the snapshot's named enum table.
func resolveEnumValues(arg metadata.Arg, snapshot *metadata.Snapshot) []string {
	if len(arg.Enum) > 0 {
		return arg.Enum
	}
	if arg.EnumName != "" {
		return snapshot.Enums[arg.EnumName]
	}
	return nil
}

func enumCompletionItems(values []string) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(values))
	kind := protocol.CompletionItemKindEnumMember
	for _, v := range values {
		value := v
		items = append(items, protocol.CompletionItem{
			Label:      value,
			Kind:       &kind,
			InsertText: &value,
		})
	}
	return items
}
