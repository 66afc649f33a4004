package metadata

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/forgescript/forgescript-lsp/internal/logging"
)

// Snapshot is the immutable metadata index visible to readers between
// atomic swaps: the function trie, the named enums, and the recorded events.
type Snapshot struct {
	Trie   *Trie
	Enums  map[string][]string
	Events []Event
}

// Event is an informational payload entry from a source's sibling
// events.json. It is recorded on the snapshot only; no feature handler
// reads it, and it never participates in parsing or validation.
type Event struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CustomFunction is a user-provided function declared in forgeconfig.json.
type CustomFunction struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Params      []CustomParam `json:"params,omitempty"`
}

// CustomParam is one parameter of a CustomFunction. It accepts either a
// bare string (the parameter name) or an object with name/description/
// type/required, matching forgeconfig.json's `[string]|[Param]` union.
type CustomParam struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// UnmarshalJSON accepts either a JSON string or a full Param object.
func (p *CustomParam) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		p.Name = name
		p.Required = true
		return nil
	}
	type alias CustomParam
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = CustomParam(a)
	return nil
}

// Manager orchestrates fetching, alias splicing, and custom-function
// registration into a Snapshot, published via an atomic pointer swap so
// readers never observe a partially built trie.
type Manager struct {
	fetcher  *Fetcher
	snapshot atomic.Pointer[Snapshot]
}

// NewManager creates a Manager backed by fetcher, starting with an empty
// snapshot (every call resolves to "Unknown function" until Load succeeds).
func NewManager(fetcher *Fetcher) *Manager {
	m := &Manager{fetcher: fetcher}
	m.snapshot.Store(&Snapshot{Trie: NewTrie(), Enums: map[string][]string{}})
	return m
}

// Events returns the events.json payloads recorded on the current snapshot.
func (m *Manager) Events() []Event {
	return m.Current().Events
}

// Current returns the currently published snapshot. Callers must read it
// once and use that reference for the duration of a single handler.
func (m *Manager) Current() *Snapshot {
	return m.snapshot.Load()
}

// Load fetches every configured URL (expanding GitHub shorthand first),
// derives the enums.json/events.json sibling endpoints, builds a fresh
// trie with alias splicing, adds custom functions, and atomically
// publishes the result. Per-URL fetch failures are logged and skipped;
// they never abort the load or propagate to the caller.
func (m *Manager) Load(ctx context.Context, urls []string, customFunctions []CustomFunction) {
	trie := NewTrie()
	enums := map[string][]string{}

	expanded := make([]string, len(urls))
	for i, u := range urls {
		expanded[i] = ExpandGitHubShorthand(u)
	}

	for _, res := range m.fetcher.FetchAll(ctx, expanded) {
		if res.Err != nil {
			logging.Warn("failed to load metadata source "+res.URL, res.Err)
			continue
		}
		var funcs []Function
		if err := json.Unmarshal(res.Body, &funcs); err != nil {
			logging.Warn("invalid metadata JSON from "+res.URL, err)
			continue
		}
		for i := range funcs {
			registerFunction(trie, &funcs[i], res.URL)
		}
	}

	enumURLs := deriveSiblingURLs(expanded, "enums.json")
	for _, res := range m.fetcher.FetchAll(ctx, enumURLs) {
		if res.Err != nil {
			continue // enums are optional; a missing sibling is not a warning
		}
		var payload map[string][]string
		if err := json.Unmarshal(res.Body, &payload); err != nil {
			continue
		}
		for k, v := range payload {
			enums[k] = v
		}
	}

	var events []Event
	eventURLs := deriveSiblingURLs(expanded, "events.json")
	for _, res := range m.fetcher.FetchAll(ctx, eventURLs) {
		if res.Err != nil {
			continue // events are informational only; a missing sibling is not a warning
		}
		var payload []Event
		if err := json.Unmarshal(res.Body, &payload); err != nil {
			continue
		}
		events = append(events, payload...)
	}

	for _, cf := range customFunctions {
		registerFunction(trie, customFunctionToFunction(cf), "")
	}

	m.snapshot.Store(&Snapshot{Trie: trie, Enums: enums, Events: events})
}

// registerFunction inserts fn under its own name and, per spec §9's
// resolved Open Question, inserts a distinct Function record per alias
// with Name rewritten to the alias string (rather than reusing the primary
// record) so each alias is self-describing.
func registerFunction(trie *Trie, fn *Function, sourceURL string) {
	fn.SourceURL = sourceURL
	trie.Insert(fn.Name, fn)

	for _, alias := range fn.Aliases {
		aliased := *fn
		aliased.Name = alias
		aliased.Aliases = nil
		trie.Insert(alias, &aliased)
	}
}

func customFunctionToFunction(cf CustomFunction) *Function {
	fn := &Function{
		Name:        cf.Name,
		Description: cf.Description,
		Brackets:    BracketsOptional,
	}
	if len(cf.Params) > 0 {
		fn.Brackets = BracketsRequired
		fn.Args = make([]Arg, len(cf.Params))
		for i, p := range cf.Params {
			fn.Args[i] = Arg{
				Name:        p.Name,
				Description: p.Description,
				Type:        p.Type,
				Required:    p.Required,
			}
		}
	}
	return fn
}

// deriveSiblingURLs replaces the trailing "functions.json" path segment of
// each URL ending in it with sibling, skipping URLs that don't match that
// convention.
func deriveSiblingURLs(urls []string, sibling string) []string {
	const suffix = "functions.json"
	var out []string
	for _, u := range urls {
		if len(u) >= len(suffix) && u[len(u)-len(suffix):] == suffix {
			out = append(out, u[:len(u)-len(suffix)]+sibling)
		}
	}
	return out
}

// RemoveFunctionsAt rebuilds the trie without any function whose SourceURL
// equals path, used when a watched custom-functions file is deleted.
func (m *Manager) RemoveFunctionsAt(path string) {
	old := m.Current()
	trie := NewTrie()
	for _, fn := range old.Trie.AllValues() {
		if fn.SourceURL == path {
			continue
		}
		trie.Insert(fn.Name, fn)
	}
	m.snapshot.Store(&Snapshot{Trie: trie, Enums: old.Enums, Events: old.Events})
}

// ReloadFile re-registers the custom functions declared in a single
// watched file, replacing any prior functions sourced from that same path.
func (m *Manager) ReloadFile(path string, functions []CustomFunction) {
	old := m.Current()
	trie := NewTrie()
	for _, fn := range old.Trie.AllValues() {
		if fn.SourceURL == path {
			continue
		}
		trie.Insert(fn.Name, fn)
	}
	for _, cf := range functions {
		registerFunction(trie, customFunctionToFunction(cf), path)
	}
	m.snapshot.Store(&Snapshot{Trie: trie, Enums: old.Enums, Events: old.Events})
}
