// Package semantic implements the semantic-token highlighting extractor:
// an independent scan of the raw source (not the parser's token stream)
// that classifies spans for editor highlighting, per the six-type legend
// function/keyword/number/alternate-function/string/comment.
package semantic

import (
	"sort"
	"unicode/utf8"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/forgescript/forgescript-lsp/internal/parser"
)

// TokenType is one of the six highlighting classes advertised in the
// server's semantic-tokens legend.
type TokenType uint32

const (
	TypeFunction TokenType = iota
	TypeKeyword
	TypeNumber
	TypeAlternateFunction
	TypeString
	TypeComment
)

// Legend lists the six type names in the order their TokenType constants
// encode, matching the order advertised in Initialize's ServerCapabilities.
var Legend = []string{"function", "keyword", "number", "alternateFunction", "string", "comment"}

// Span is one (start,end) highlighting span before delta encoding.
type Span struct {
	Start int
	End   int
	Type  TokenType
}

// Extract scans source for highlighting spans, honoring the metadata
// snapshot for function-name resolution and alternating function/
// alternate-function coloring across successive matches when multiColor
// is enabled.
func Extract(source string, snapshot *metadata.Snapshot, multiColor bool) []Span {
	var spans []Span
	altToggle := false

	i := 0
	for i < len(source) {
		c := source[i]

		switch {
		case c == '$' && !parser.IsEscapedDSLSpecial(source, i) && hasIdent(source, i):
			nameSpan, consumed, kind := classifyDollar(source, i, snapshot)
			switch kind {
			case kindComment:
				spans = append(spans, Span{i, consumed, TypeComment})
			case kindEscape:
				spans = append(spans, nameSpan)
				if nameSpan.End < consumed-1 {
					spans = append(spans, Span{nameSpan.End, consumed - 1, TypeString})
				}
				spans = append(spans, Span{consumed - 1, consumed, TypeFunction})
			case kindFunction:
				t := TypeFunction
				if multiColor && altToggle {
					t = TypeAlternateFunction
				}
				altToggle = !altToggle
				spans = append(spans, Span{nameSpan.Start, nameSpan.End, t})
			}
			i = consumed

		case c == ';' && !parser.IsEscapedDSLSpecial(source, i):
			spans = append(spans, Span{i, i + 1, TypeKeyword})
			i++

		case isDigit(c):
			start := i
			for i < len(source) && (isDigit(source[i]) || source[i] == '.') {
				i++
			}
			spans = append(spans, Span{start, i, TypeNumber})

		case matchesWord(source, i, "true"):
			spans = append(spans, Span{i, i + 4, TypeKeyword})
			i += 4

		case matchesWord(source, i, "false"):
			spans = append(spans, Span{i, i + 5, TypeKeyword})
			i += 5

		default:
			i++
		}
	}

	return normalize(spans)
}

type callKind int

const (
	kindNone callKind = iota
	kindComment
	kindEscape
	kindFunction
)

// classifyDollar mirrors the parser's own function resolution rules
// (exact match when bracketed, longest-prefix otherwise) closely enough
// to classify a call for highlighting, but never emits diagnostics.
func classifyDollar(s string, dollarIdx int, snapshot *metadata.Snapshot) (nameSpan Span, consumed int, kind callKind) {
	i := dollarIdx + 1
	if i < len(s) && (s[i] == '!' || s[i] == '#') {
		i++
	}
	identStart := i
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	identEnd := i
	identifier := s[identStart:identEnd]
	key := "$" + identifier

	bracketFollows := identEnd < len(s) && s[identEnd] == '['

	var fn *metadata.Function
	matchedLen := 0
	if bracketFollows {
		if f, ok := snapshot.Trie.GetExact(key); ok {
			fn = f
			matchedLen = len(identifier)
		}
	} else if mk, f, ok := snapshot.Trie.LongestPrefix(key); ok {
		fn = f
		matchedLen = len(mk) - 1
	}

	if fn == nil {
		return Span{}, identEnd, kindNone
	}

	nameEnd := identStart + matchedLen

	if fn.IsComment() {
		if nameEnd < len(s) && s[nameEnd] == '[' {
			if close := parser.FindMatchingBracketRaw(s, nameEnd); close != -1 {
				return Span{dollarIdx, close + 1, TypeComment}, close + 1, kindComment
			}
		}
		return Span{dollarIdx, nameEnd, TypeFunction}, nameEnd, kindFunction
	}

	if fn.IsEscapeFunction() {
		if nameEnd < len(s) && s[nameEnd] == '[' {
			if close := parser.FindMatchingBracketRaw(s, nameEnd); close != -1 {
				return Span{dollarIdx, nameEnd, TypeFunction}, close + 1, kindEscape
			}
		}
		return Span{dollarIdx, nameEnd, TypeFunction}, nameEnd, kindFunction
	}

	return Span{dollarIdx, nameEnd, TypeFunction}, nameEnd, kindFunction
}

func hasIdent(s string, dollarIdx int) bool {
	i := dollarIdx + 1
	if i < len(s) && (s[i] == '!' || s[i] == '#') {
		i++
	}
	return i < len(s) && isIdentByte(s[i])
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func matchesWord(s string, i int, word string) bool {
	if i+len(word) > len(s) || s[i:i+len(word)] != word {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	end := i + len(word)
	if end < len(s) && isIdentByte(s[end]) {
		return false
	}
	return true
}

// normalize sorts spans by start, drops zero-length entries, and clamps
// overlaps by simply trusting scan order (the scanner never re-visits a
// byte range once consumed).
func normalize(spans []Span) []Span {
	filtered := spans[:0]
	for _, s := range spans {
		if s.End > s.Start {
			filtered = append(filtered, s)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Start < filtered[j].Start })
	return filtered
}

// ToRelative converts byte-offset spans in source into the LSP semantic
// tokens delta encoding (Δline, Δstart, length, type, modifiers), counting
// characters (runes) for UTF-8 safety and clamping length to at least 1.
func ToRelative(source string, spans []Span) []uint32 {
	data := make([]uint32, 0, len(spans)*5)

	prevLine, prevStartChar := 0, 0
	lineStart := 0
	line := 0
	byteToLineChar := func(byteOffset int) (int, int) {
		for lineStart < byteOffset {
			nl := indexByteFrom(source, '\n', lineStart)
			if nl == -1 || nl >= byteOffset {
				break
			}
			lineStart = nl + 1
			line++
		}
		chars := utf8.RuneCountInString(source[lineStart:byteOffset])
		return line, chars
	}

	for _, s := range spans {
		startLine, startChar := byteToLineChar(s.Start)
		length := utf8.RuneCountInString(source[s.Start:s.End])
		if length < 1 {
			length = 1
		}

		deltaLine := uint32(startLine - prevLine)
		deltaStart := uint32(startChar)
		if deltaLine == 0 {
			deltaStart = uint32(startChar - prevStartChar)
		}

		data = append(data, deltaLine, deltaStart, uint32(length), uint32(s.Type), 0)

		prevLine, prevStartChar = startLine, startChar
	}

	return data
}

func indexByteFrom(s string, b byte, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
