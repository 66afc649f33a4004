package document

import (
	"testing"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *metadata.Manager {
	t.Helper()
	fetcher, err := metadata.NewFetcher(t.TempDir())
	require.NoError(t, err)
	return metadata.NewManager(fetcher)
}

func TestOpenCachesParseResult(t *testing.T) {
	svc := New(testManager(t))

	result := svc.Open("file:///a.md", "code: `$nope[x]`", 1)
	assert.NotEmpty(t, result.Diagnostics)

	cached, ok := svc.Parsed("file:///a.md")
	require.True(t, ok)
	assert.Equal(t, result.Diagnostics, cached.Diagnostics)
}

func TestCloseForgetsDocument(t *testing.T) {
	svc := New(testManager(t))
	svc.Open("file:///a.md", "hi", 1)
	svc.Close("file:///a.md")

	_, ok := svc.Source("file:///a.md")
	assert.False(t, ok)
	_, ok = svc.Parsed("file:///a.md")
	assert.False(t, ok)
}

func TestWorkspaceFoldersRoundTrip(t *testing.T) {
	svc := New(testManager(t))
	svc.SetWorkspaceFolders([]string{"/tmp/proj"})
	assert.Equal(t, []string{"/tmp/proj"}, svc.WorkspaceFolders())
}

func TestChangeReparsesAgainstLatestSnapshot(t *testing.T) {
	svc := New(testManager(t))
	svc.Open("file:///a.md", "code: `$ping[x]`", 1)
	result := svc.Change("file:///a.md", "code: `$ping[x;y]`", 2)
	assert.NotEmpty(t, result.Diagnostics)
}

func TestWatchedFunctionsPathEmptyWithoutConfig(t *testing.T) {
	svc := New(testManager(t))
	assert.Empty(t, svc.WatchedFunctionsPath())
}

func TestWatchedFunctionsPathResolvesAbsolutePath(t *testing.T) {
	svc := New(testManager(t))
	svc.configMu.Lock()
	svc.config.CustomFunctionsPath = "/abs/custom-functions.json"
	svc.configMu.Unlock()

	assert.Equal(t, "/abs/custom-functions.json", svc.WatchedFunctionsPath())
}
