package parser

import (
	"fmt"
	"strings"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
)

// Parser recognizes ForgeScript syntax against a fixed metadata snapshot.
// A Parser is stateless beyond that snapshot reference and safe to reuse
// or share across goroutines; callers construct one per parse with the
// snapshot they want validated against.
type Parser struct {
	snapshot *metadata.Snapshot
}

// New returns a Parser bound to snapshot.
func New(snapshot *metadata.Snapshot) *Parser {
	return &Parser{snapshot: snapshot}
}

// enumValidationExceptions names (function, argIndex) pairs whose enum
// constraint is not statically checkable because the allowed values are
// supplied dynamically at runtime, carried over unchanged from the
// original implementation's exception list.
var enumValidationExceptions = map[string]int{
	"color": 0,
}

// Parse extracts every `code:` block from doc and parses each
// independently, offsetting every resulting span back into doc's
// coordinate space.
func (p *Parser) Parse(doc string) ParseResult {
	var result ParseResult

	for _, block := range extractCodeBlocks(doc) {
		sub := p.parseBody(doc[block.start:block.end], block.start)
		result.Tokens = append(result.Tokens, sub.Tokens...)
		result.Diagnostics = append(result.Diagnostics, sub.Diagnostics...)
		result.Functions = append(result.Functions, sub.Functions...)
	}

	return result
}

type codeBlock struct{ start, end int }

// extractCodeBlocks scans doc for the literal header "code:", skips
// spaces/tabs, requires an opening backtick, then reads until the first
// unescaped backtick under the backtick escape regime.
func extractCodeBlocks(doc string) []codeBlock {
	var blocks []codeBlock
	const header = "code:"

	i := 0
	for {
		idx := strings.Index(doc[i:], header)
		if idx == -1 {
			break
		}
		pos := i + idx + len(header)
		for pos < len(doc) && (doc[pos] == ' ' || doc[pos] == '\t') {
			pos++
		}
		if pos >= len(doc) || doc[pos] != '`' {
			i = i + idx + len(header)
			continue
		}
		bodyStart := pos + 1
		end := bodyStart
		for end < len(doc) {
			if doc[end] == '`' && !IsEscaped(doc, end) {
				break
			}
			end++
		}
		blocks = append(blocks, codeBlock{start: bodyStart, end: end})
		if end >= len(doc) {
			break
		}
		i = end + 1
	}

	return blocks
}

// scanState accumulates a single scanBody pass's output.
type scanState struct {
	tokens      []Token
	diagnostics []Diagnostic
	functions   []*ParsedFunction
}

func (p *Parser) parseBody(body string, base int) ParseResult {
	state := &scanState{}

	i := 0
	textStart := 0
	suppressArmed := false
	suppressActive := false

	flushText := func(to int) {
		if to > textStart {
			state.tokens = append(state.tokens, Token{Start: base + textStart, End: base + to, Kind: TokenText})
		}
	}

	for i < len(body) {
		c := body[i]

		switch {
		case c == '\n':
			if suppressActive {
				suppressActive = false
			} else if suppressArmed {
				suppressArmed = false
				suppressActive = true
			}
			i++

		case c == '$' && !IsEscapedDSLSpecial(body, i) && i+1 < len(body) && body[i+1] == '{':
			flushText(i)
			closeIdx := findMatchingBrace(body, i+1, len(body))
			if closeIdx == -1 {
				closeIdx = len(body) - 1
			}
			state.tokens = append(state.tokens, Token{Start: base + i, End: base + closeIdx + 1, Kind: TokenJavaScript})
			i = closeIdx + 1
			textStart = i

		case c == '$' && !IsEscapedDSLSpecial(body, i) && hasIdentAfterModifiers(body, i, len(body)):
			flushText(i)
			fn, next, isDirective := p.parseFunctionCall(body, i, len(body), base, state, suppressActive)
			if isDirective {
				suppressArmed = true
			}
			if fn != nil && !suppressActive {
				state.functions = append(state.functions, fn)
			}
			i = next
			textStart = i

		default:
			i++
		}
	}
	flushText(len(body))

	return ParseResult{Tokens: state.tokens, Diagnostics: state.diagnostics, Functions: state.functions}
}

// hasIdentAfterModifiers reports whether a valid `$name` identifier (after
// skipping at most one `!`/`#` modifier) begins at idx (which must point
// at '$').
func hasIdentAfterModifiers(s string, idx, end int) bool {
	i := idx + 1
	if i < end && (s[i] == '!' || s[i] == '#') {
		i++
	}
	return i < end && isIdentByte(s[i])
}

// findMatchingBrace returns the index of the '}' balancing the '{' at
// openIdx using a plain depth counter, or -1 if unbalanced.
func findMatchingBrace(s string, openIdx, end int) int {
	depth := 0
	for i := openIdx; i < end; i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseFunctionCall recognizes one `$name[...]` (or bare `$name`) call
// starting at dollarIdx and returns the resulting ParsedFunction (nil if
// the name is unknown), the index to resume scanning from, and whether
// this call is the `$c[fs@ignore-error]` directive.
func (p *Parser) parseFunctionCall(s string, dollarIdx, end, base int, state *scanState, suppress bool) (*ParsedFunction, int, bool) {
	i := dollarIdx + 1
	silent, negated := false, false
	if i < end && s[i] == '!' {
		silent = true
		i++
	} else if i < end && s[i] == '#' {
		negated = true
		i++
	}

	identStart := i
	for i < end && isIdentByte(s[i]) {
		i++
	}
	identEnd := i
	identifier := s[identStart:identEnd]
	key := "$" + identifier

	bracketFollows := identEnd < end && s[identEnd] == '['

	var fn *metadata.Function
	matchedLen := 0
	if bracketFollows {
		if f, ok := p.snapshot.Trie.GetExact(key); ok {
			fn = f
			matchedLen = len(identifier)
		}
	} else if mk, f, ok := p.snapshot.Trie.LongestPrefix(key); ok {
		fn = f
		matchedLen = len(mk) - 1
	}

	if fn == nil {
		if !suppress {
			state.diagnostics = append(state.diagnostics, Diagnostic{
				Start: base + dollarIdx, End: base + identEnd, Severity: SeverityError,
				Message: fmt.Sprintf("Unknown function $%s", identifier),
			})
		}
		state.tokens = append(state.tokens, Token{Start: base + dollarIdx, End: base + identEnd, Kind: TokenUnknown})
		return nil, identEnd, false
	}

	name := identifier[:matchedLen]
	nameEnd := identStart + matchedLen
	matched := s[dollarIdx:nameEnd]

	if fn.IsComment() || fn.IsEscapeFunction() {
		return p.parseEscapeLikeCall(s, dollarIdx, nameEnd, end, base, state, suppress, fn, name, matched, silent, negated)
	}

	return p.parseRegularCall(s, dollarIdx, nameEnd, end, base, state, suppress, fn, name, matched, silent, negated)
}

func (p *Parser) parseEscapeLikeCall(
	s string, dollarIdx, nameEnd, end, base int, state *scanState, suppress bool,
	fn *metadata.Function, name, matched string, silent, negated bool,
) (*ParsedFunction, int, bool) {
	state.tokens = append(state.tokens, Token{Start: base + dollarIdx, End: base + nameEnd, Kind: TokenFunctionName})

	if nameEnd >= end || s[nameEnd] != '[' {
		if !suppress {
			state.diagnostics = append(state.diagnostics, Diagnostic{
				Start: base + dollarIdx, End: base + nameEnd, Severity: SeverityError,
				Message: fmt.Sprintf("$%s requires brackets", name),
			})
		}
		return &ParsedFunction{Name: name, Matched: matched, Start: base + dollarIdx, End: base + nameEnd, Silent: silent, Negated: negated, Meta: fn}, nameEnd, false
	}

	closeIdx := FindMatchingBracketRaw(s, nameEnd)
	if closeIdx == -1 {
		if !suppress {
			state.diagnostics = append(state.diagnostics, Diagnostic{
				Start: base + dollarIdx, End: base + end, Severity: SeverityError,
				Message: fmt.Sprintf("Unclosed '[' for $%s", name),
			})
		}
		return &ParsedFunction{Name: name, Matched: matched, Start: base + dollarIdx, End: base + end, Silent: silent, Negated: negated, Meta: fn}, end, false
	}

	inner := s[nameEnd+1 : closeIdx]
	state.tokens = append(state.tokens,
		Token{Start: base + nameEnd + 1, End: base + closeIdx, Kind: TokenEscaped},
		Token{Start: base + closeIdx, End: base + closeIdx + 1, Kind: TokenFunctionName},
	)

	isDirective := fn.IsComment() && strings.TrimSpace(inner) == "fs@ignore-error"

	pf := &ParsedFunction{
		Name: name, Matched: matched, Start: base + dollarIdx, End: base + closeIdx + 1,
		Silent: silent, Negated: negated, Meta: fn,
		Args: [][]ParsedArg{{{Literal: inner}}},
	}
	return pf, closeIdx + 1, isDirective
}

func (p *Parser) parseRegularCall(
	s string, dollarIdx, nameEnd, end, base int, state *scanState, suppress bool,
	fn *metadata.Function, name, matched string, silent, negated bool,
) (*ParsedFunction, int, bool) {
	state.tokens = append(state.tokens, Token{Start: base + dollarIdx, End: base + nameEnd, Kind: TokenFunctionName})

	bracketPresent := nameEnd < end && s[nameEnd] == '['

	if !bracketPresent {
		if fn.Brackets == metadata.BracketsRequired {
			if !suppress {
				state.diagnostics = append(state.diagnostics, Diagnostic{
					Start: base + dollarIdx, End: base + nameEnd, Severity: SeverityError,
					Message: fmt.Sprintf("$%s requires brackets", name),
				})
			}
			return nil, nameEnd, false
		}
		return &ParsedFunction{Name: name, Matched: matched, Start: base + dollarIdx, End: base + nameEnd, Silent: silent, Negated: negated, Meta: fn}, nameEnd, false
	}

	if fn.Brackets == metadata.BracketsDisallowed && !suppress {
		state.diagnostics = append(state.diagnostics, Diagnostic{
			Start: base + dollarIdx, End: base + nameEnd, Severity: SeverityError,
			Message: fmt.Sprintf("$%s does not accept brackets", name),
		})
	}

	closeIdx := FindMatchingBracketSmart(s, nameEnd)
	if closeIdx == -1 {
		if !suppress {
			state.diagnostics = append(state.diagnostics, Diagnostic{
				Start: base + dollarIdx, End: base + end, Severity: SeverityError,
				Message: fmt.Sprintf("Unclosed '[' for $%s", name),
			})
		}
		return &ParsedFunction{Name: name, Matched: matched, Start: base + dollarIdx, End: base + end, Silent: silent, Negated: negated, Meta: fn}, end, false
	}

	pieces := splitTopLevelArgs(s, nameEnd+1, closeIdx)
	args := make([][]ParsedArg, 0, len(pieces))
	for _, piece := range pieces {
		segArgs, subTokens, subDiags := p.scanArgSegment(s, piece.start, piece.end, base, suppress)
		args = append(args, segArgs)
		state.tokens = append(state.tokens, subTokens...)
		state.diagnostics = append(state.diagnostics, subDiags...)
	}

	if fn.Brackets != metadata.BracketsDisallowed && !suppress {
		n := len(pieces)
		min := fn.MinArgs()
		max := fn.MaxArgs()
		if n < min {
			state.diagnostics = append(state.diagnostics, Diagnostic{
				Start: base + dollarIdx, End: base + closeIdx + 1, Severity: SeverityError,
				Message: fmt.Sprintf("$%s expects at least %d args, got %d", name, min, n),
			})
		} else if max != -1 && n > max {
			state.diagnostics = append(state.diagnostics, Diagnostic{
				Start: base + dollarIdx, End: base + closeIdx + 1, Severity: SeverityError,
				Message: fmt.Sprintf("$%s expects at most %d args, got %d", name, max, n),
			})
		}
		state.diagnostics = append(state.diagnostics, p.validateEnumArgs(fn, name, args, base+dollarIdx, base+closeIdx+1)...)
	}

	pf := &ParsedFunction{
		Name: name, Matched: matched, Start: base + dollarIdx, End: base + closeIdx + 1,
		Silent: silent, Negated: negated, Meta: fn, Args: args,
	}
	return pf, closeIdx + 1, false
}

// validateEnumArgs implements the enum-constrained argument validation
// supplement: for each argument spec naming an enum, if the corresponding
// piece is a single literal, verify it names an allowed value.
func (p *Parser) validateEnumArgs(fn *metadata.Function, name string, args [][]ParsedArg, start, end int) []Diagnostic {
	var diags []Diagnostic

	for idx, arg := range fn.Args {
		if len(arg.Enum) == 0 && arg.EnumName == "" {
			continue
		}
		if except, ok := enumValidationExceptions[name]; ok && except == idx {
			continue
		}
		if idx >= len(args) || len(args[idx]) != 1 || args[idx][0].IsFunction() {
			continue
		}
		value := strings.TrimSpace(Unescape(args[idx][0].Literal))

		allowed := arg.Enum
		if len(allowed) == 0 && arg.EnumName != "" {
			allowed = p.snapshot.Enums[arg.EnumName]
		}
		if len(allowed) == 0 {
			continue
		}
		if !containsString(allowed, value) {
			diags = append(diags, Diagnostic{
				Start: start, End: end, Severity: SeverityError,
				Message: fmt.Sprintf("Invalid value %q for argument %q of $%s. Expected one of: %v", value, arg.Name, name, allowed),
			})
		}
	}

	return diags
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

type argSpan struct{ start, end int }

// splitTopLevelArgs splits s[start:end] on top-level ';' — not inside a
// nested balanced '[...]', not escaped, and not inside a quoted ('/")
// substring.
func splitTopLevelArgs(s string, start, end int) []argSpan {
	var spans []argSpan
	var quote byte
	segStart := start

	for i := start; i < end; i++ {
		c := s[i]

		if quote != 0 {
			if c == '\\' && i+1 < end {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '[':
			if !IsEscapedDSLSpecial(s, i) {
				if closeIdx := FindMatchingBracketSmart(s, i); closeIdx != -1 {
					i = closeIdx
				}
			}
		case ';':
			if !IsEscapedDSLSpecial(s, i) {
				spans = append(spans, argSpan{segStart, i})
				segStart = i + 1
			}
		}
	}
	spans = append(spans, argSpan{segStart, end})
	return spans
}

// scanArgSegment scans one top-level argument's raw text for nested
// function calls, returning the mixed Literal/Function sequence.
func (p *Parser) scanArgSegment(s string, start, end, base int, suppress bool) ([]ParsedArg, []Token, []Diagnostic) {
	var args []ParsedArg
	var tokens []Token
	var diags []Diagnostic

	textStart := start
	flush := func(to int) {
		if to > textStart {
			args = append(args, ParsedArg{Literal: s[textStart:to]})
		}
	}

	i := start
	for i < end {
		if s[i] == '$' && !IsEscapedDSLSpecial(s, i) && hasIdentAfterModifiers(s, i, end) {
			flush(i)
			state := &scanState{}
			fn, next, _ := p.parseFunctionCall(s, i, end, base, state, suppress)
			tokens = append(tokens, state.tokens...)
			diags = append(diags, state.diagnostics...)
			if fn != nil {
				args = append(args, ParsedArg{Function: fn})
			}
			i = next
			textStart = i
			continue
		}
		i++
	}
	flush(end)

	return args, tokens, diags
}
