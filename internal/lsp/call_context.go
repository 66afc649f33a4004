package lsp

import "github.com/forgescript/forgescript-lsp/internal/metadata"

// activeCall describes the `$name[...]` call enclosing a cursor offset, as
// found by scanning backward from the offset.
type activeCall struct {
	DollarIdx   int
	Modifier    string
	Name        string // includes leading $, excludes modifier
	BracketOpen int
	ArgIndex    int
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// findEnclosingBracket scans backward from offset for the nearest unmatched
// `[`, tracking quote state and backslash escapes and skipping over inner
// balanced `[...]` pairs. It returns -1 if offset is not inside an open
// bracket.
func findEnclosingBracket(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}

	depth := 0
	inSingle, inDouble := false, false

	for i := offset - 1; i >= 0; i-- {
		c := text[i]

		if inSingle {
			if c == '\'' && countTrailingBackslashes(text, i) == 0 {
				inSingle = false
			}
			continue
		}
		if inDouble {
			if c == '"' && countTrailingBackslashes(text, i) == 0 {
				inDouble = false
			}
			continue
		}

		switch c {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case ']':
			depth++
		case '[':
			if depth == 0 {
				return i
			}
			depth--
		}
	}

	return -1
}

// countTrailingBackslashes counts consecutive backslashes immediately
// before position i.
func countTrailingBackslashes(text string, i int) int {
	n := 0
	for j := i - 1; j >= 0 && text[j] == '\\'; j-- {
		n++
	}
	return n
}

// extractCallHead walks backward from bracketOpen over an identifier run
// and an optional `!`/`#` modifier to find the preceding `$name`.
func extractCallHead(text string, bracketOpen int) (dollarIdx int, modifier string, name string, ok bool) {
	i := bracketOpen
	for i > 0 && isNameByte(text[i-1]) {
		i--
	}
	nameStart := i

	modStart := nameStart
	if modStart > 0 && (text[modStart-1] == '!' || text[modStart-1] == '#') {
		modStart--
	}

	if modStart == 0 || text[modStart-1] != '$' {
		return 0, "", "", false
	}

	dollarIdx = modStart - 1
	if modStart != nameStart {
		modifier = string(text[modStart])
	}
	name = "$" + text[nameStart:bracketOpen]
	return dollarIdx, modifier, name, true
}

// activeParamIndex counts separators at depth 0 between bracketOpen+1 and
// offset. Both `;` and `,` count, per the signature-help separator
// convention; nested brackets, quoted substrings, and escapes are skipped.
func activeParamIndex(text string, bracketOpen, offset int) int {
	depth := 0
	inSingle, inDouble := false, false
	index := 0

	for i := bracketOpen + 1; i < offset && i < len(text); i++ {
		c := text[i]

		if inSingle {
			if c == '\'' && countLeadingBackslashes(text, i) == 0 {
				inSingle = false
			}
			continue
		}
		if inDouble {
			if c == '"' && countLeadingBackslashes(text, i) == 0 {
				inDouble = false
			}
			continue
		}

		switch c {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ';', ',':
			if depth == 0 {
				index++
			}
		}
	}

	return index
}

func countLeadingBackslashes(text string, i int) int {
	n := 0
	for j := i - 1; j >= 0 && text[j] == '\\'; j-- {
		n++
	}
	return n
}

// resolveActiveCall finds the call enclosing offset and, if the call name
// resolves in snapshot, its active parameter index.
func resolveActiveCall(text string, offset int, snapshot *metadata.Snapshot) (activeCall, *metadata.Function, bool) {
	bracketOpen := findEnclosingBracket(text, offset)
	if bracketOpen == -1 {
		return activeCall{}, nil, false
	}

	dollarIdx, modifier, name, ok := extractCallHead(text, bracketOpen)
	if !ok {
		return activeCall{}, nil, false
	}

	fn, ok := snapshot.Trie.GetExact(name)
	if !ok {
		return activeCall{}, nil, false
	}

	idx := activeParamIndex(text, bracketOpen, offset)
	call := activeCall{
		DollarIdx:   dollarIdx,
		Modifier:    modifier,
		Name:        name,
		BracketOpen: bracketOpen,
		ArgIndex:    idx,
	}
	return call, fn, true
}

// activeArg returns the Arg at index idx, clamped to the function's rest
// argument when idx runs past the declared list.
func activeArg(fn *metadata.Function, idx int) (metadata.Arg, bool) {
	if len(fn.Args) == 0 {
		return metadata.Arg{}, false
	}
	if idx < len(fn.Args) {
		return fn.Args[idx], true
	}
	last := fn.Args[len(fn.Args)-1]
	if last.Rest {
		return last, true
	}
	return metadata.Arg{}, false
}
