// Package document holds the LSP server's per-request-independent state:
// open document sources, their cached parse results, the current
// metadata snapshot, workspace folders and configuration. Each field
// carries its own lock so a hover on one document never waits behind a
// $c[fs@ignore-error] reparse of another.
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/forgescript/forgescript-lsp/internal/logging"
	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/forgescript/forgescript-lsp/internal/parser"
	"gitlab.com/tozd/go/errors"
)

// URI is a client-supplied document identifier, normally a file:// URL.
type URI = string

// Config mirrors forgeconfig.json's schema.
type Config struct {
	URLs                []string                  `json:"urls"`
	MultipleFuncColors  *bool                     `json:"multiple_function_colors,omitempty"`
	CustomFunctionsPath string                    `json:"custom_functions_path,omitempty"`
	CustomFunctions     []metadata.CustomFunction `json:"custom_functions,omitempty"`
}

const configFileName = "forgeconfig.json"

var defaultURLs = []string{
	"github:tolgee/forgescript/metadata/functions.json",
}

// Source is one open document's text and version.
type Source struct {
	Text    string
	Version int
}

// Service owns every piece of state a handler needs, each behind its own
// mutex so unrelated operations never contend.
type Service struct {
	sourcesMu sync.RWMutex
	sources   map[URI]Source

	parsedMu sync.RWMutex
	parsed   map[URI]parser.ParseResult

	metadataMu sync.RWMutex
	manager    *metadata.Manager

	foldersMu sync.RWMutex
	folders   []string

	configMu sync.RWMutex
	config   Config
}

// New returns a Service with an empty metadata snapshot; call Initialize
// once workspace folders are known to load forgeconfig.json and fetch
// function metadata.
func New(manager *metadata.Manager) *Service {
	return &Service{
		sources: make(map[URI]Source),
		parsed:  make(map[URI]parser.ParseResult),
		manager: manager,
		config:  Config{URLs: defaultURLs},
	}
}

// Open records a newly opened document and parses it.
func (s *Service) Open(uri URI, text string, version int) parser.ParseResult {
	s.sourcesMu.Lock()
	s.sources[uri] = Source{Text: text, Version: version}
	s.sourcesMu.Unlock()

	return s.reparse(uri, text)
}

// Change replaces a document's full text (the server advertises Full
// sync only) and reparses it.
func (s *Service) Change(uri URI, text string, version int) parser.ParseResult {
	s.sourcesMu.Lock()
	s.sources[uri] = Source{Text: text, Version: version}
	s.sourcesMu.Unlock()

	return s.reparse(uri, text)
}

// Close forgets a document's source and cached parse result.
func (s *Service) Close(uri URI) {
	s.sourcesMu.Lock()
	delete(s.sources, uri)
	s.sourcesMu.Unlock()

	s.parsedMu.Lock()
	delete(s.parsed, uri)
	s.parsedMu.Unlock()
}

// Source returns a document's current text, if open.
func (s *Service) Source(uri URI) (Source, bool) {
	s.sourcesMu.RLock()
	defer s.sourcesMu.RUnlock()
	src, ok := s.sources[uri]
	return src, ok
}

// Parsed returns a document's cached parse result, if open.
func (s *Service) Parsed(uri URI) (parser.ParseResult, bool) {
	s.parsedMu.RLock()
	defer s.parsedMu.RUnlock()
	pr, ok := s.parsed[uri]
	return pr, ok
}

// Snapshot returns the current metadata snapshot.
func (s *Service) Snapshot() *metadata.Snapshot {
	s.metadataMu.RLock()
	defer s.metadataMu.RUnlock()
	return s.manager.Current()
}

// MultiColor reports whether alternating function-color highlighting is
// enabled (default true per forgeconfig.json's schema).
func (s *Service) MultiColor() bool {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	if s.config.MultipleFuncColors == nil {
		return true
	}
	return *s.config.MultipleFuncColors
}

// SetWorkspaceFolders records the workspace root paths reported at
// initialize time.
func (s *Service) SetWorkspaceFolders(folders []string) {
	s.foldersMu.Lock()
	s.folders = folders
	s.foldersMu.Unlock()
}

// WorkspaceFolders returns the current workspace root paths.
func (s *Service) WorkspaceFolders() []string {
	s.foldersMu.RLock()
	defer s.foldersMu.RUnlock()
	out := make([]string, len(s.folders))
	copy(out, s.folders)
	return out
}

// reparse runs the parser against text using the current snapshot and
// caches the result.
func (s *Service) reparse(uri URI, text string) parser.ParseResult {
	p := parser.New(s.Snapshot())
	result := p.Parse(text)

	s.parsedMu.Lock()
	s.parsed[uri] = result
	s.parsedMu.Unlock()

	return result
}

// ReparseAll re-runs the parser for every open document against the
// current snapshot, used after metadata reloads. Per the watched-file
// lifecycle rule, existing parse caches are not otherwise invalidated;
// only an explicit reparse (as happens on the document's next change)
// picks up a new snapshot — this method exists for callers that want the
// refreshed diagnostics published immediately.
func (s *Service) ReparseAll() map[URI]parser.ParseResult {
	s.sourcesMu.RLock()
	uris := make([]URI, 0, len(s.sources))
	texts := make(map[URI]string, len(s.sources))
	for uri, src := range s.sources {
		uris = append(uris, uri)
		texts[uri] = src.Text
	}
	s.sourcesMu.RUnlock()

	out := make(map[URI]parser.ParseResult, len(uris))
	for _, uri := range uris {
		out[uri] = s.reparse(uri, texts[uri])
	}
	return out
}

// Initialize loads forgeconfig.json from the first workspace folder that
// has one, fetches metadata from the configured URLs (or the default URL
// on any config error), and registers custom functions declared inline
// or via custom_functions_path.
func (s *Service) Initialize(ctx context.Context, folders []string) error {
	s.SetWorkspaceFolders(folders)

	roots := make([]string, 0, len(folders))
	for _, f := range folders {
		if p, err := URIToPath(f); err == nil {
			roots = append(roots, p)
		}
	}

	cfg := s.loadConfig(roots)
	s.configMu.Lock()
	s.config = cfg
	s.configMu.Unlock()

	customFns := append([]metadata.CustomFunction{}, cfg.CustomFunctions...)
	var pathFns []metadata.CustomFunction
	fnsPath := ""
	if cfg.CustomFunctionsPath != "" {
		if path := s.resolveInWorkspace(roots, cfg.CustomFunctionsPath); path != "" {
			if fns, err := readCustomFunctions(path); err != nil {
				logging.Warn("failed to load custom_functions_path", err)
			} else {
				fnsPath, pathFns = path, fns
			}
		}
	}

	s.metadataMu.Lock()
	s.manager.Load(ctx, cfg.URLs, customFns)
	if fnsPath != "" {
		// Tag the file's functions with its path so a later watched-file
		// change or deletion replaces or removes exactly these.
		s.manager.ReloadFile(fnsPath, pathFns)
	}
	s.metadataMu.Unlock()

	return nil
}

func readCustomFunctions(path string) ([]metadata.CustomFunction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}
	var fns []metadata.CustomFunction
	if err := json.Unmarshal(data, &fns); err != nil {
		return nil, errors.Errorf("parsing %s: %w", path, err)
	}
	return fns, nil
}

// loadConfig reads forgeconfig.json from the first workspace root that
// has one; a missing file or a parse failure both fall back to defaults
// silently, per the error-handling policy for configuration errors.
func (s *Service) loadConfig(roots []string) Config {
	cfg := Config{URLs: defaultURLs}

	for _, root := range roots {
		path := filepath.Join(root, configFileName)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := json.Unmarshal(data, &parsed); err != nil {
			logging.Warn(fmt.Sprintf("failed to parse %s", path), err)
			continue
		}
		if len(parsed.URLs) == 0 {
			parsed.URLs = defaultURLs
		}
		return parsed
	}

	return cfg
}

// WatchedFunctionsPath returns the resolved absolute path of the
// configured custom_functions_path, or "" if none is set. Used to extend
// the workspace/didChangeWatchedFiles registration beyond forgeconfig.json
// itself.
func (s *Service) WatchedFunctionsPath() string {
	s.configMu.RLock()
	rel := s.config.CustomFunctionsPath
	s.configMu.RUnlock()
	if rel == "" {
		return ""
	}

	s.foldersMu.RLock()
	folders := append([]string{}, s.folders...)
	s.foldersMu.RUnlock()

	roots := make([]string, 0, len(folders))
	for _, f := range folders {
		if p, err := URIToPath(f); err == nil {
			roots = append(roots, p)
		}
	}
	return s.resolveInWorkspace(roots, rel)
}

func (s *Service) resolveInWorkspace(roots []string, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	for _, root := range roots {
		candidate := filepath.Join(root, rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// URIToPath converts a file:// URI into an OS-specific absolute path.
func URIToPath(u string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", err
	}

	if parsed.Scheme != "file" && parsed.Scheme != "" {
		return "", errors.Errorf("unsupported URI scheme: %s", parsed.Scheme)
	}

	path := parsed.Path
	if path == "" {
		path = parsed.Opaque
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}

	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) >= 3 && path[2] == ':' {
		path = path[1:]
	}

	if path == "" {
		return "", errors.Errorf("empty path extracted from URI: %s", u)
	}

	return filepath.FromSlash(path), nil
}

// WatchedFileChanged reloads the metadata contributed by a single
// watched file (added, changed, or removed) and reparses open documents
// against the new snapshot. A change to forgeconfig.json itself re-runs
// Initialize against the current workspace folders.
func (s *Service) WatchedFileChanged(path string, removed bool) error {
	if filepath.Base(path) == configFileName {
		if err := s.Initialize(context.Background(), s.WorkspaceFolders()); err != nil {
			return err
		}
		s.ReparseAll()
		return nil
	}

	if removed {
		s.metadataMu.Lock()
		s.manager.RemoveFunctionsAt(path)
		s.metadataMu.Unlock()
		s.ReparseAll()
		return nil
	}

	fns, err := readCustomFunctions(path)
	if err != nil {
		return err
	}

	s.metadataMu.Lock()
	s.manager.ReloadFile(path, fns)
	s.metadataMu.Unlock()

	s.ReparseAll()
	return nil
}
