package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherFetchOrCacheWritesCacheOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"$ban"}]`))
	}))
	defer srv.Close()

	f, err := NewFetcher(t.TempDir())
	require.NoError(t, err)

	body, err := f.FetchOrCache(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"$ban"}]`, string(body))

	cached, err := os.ReadFile(f.cachePath(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, body, cached)
}

func TestFetcherFetchOrCacheFallsBackToCacheOnNetworkFailure(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFetcher(dir)
	require.NoError(t, err)

	url := "http://127.0.0.1:0/does-not-resolve/functions.json"
	require.NoError(t, os.WriteFile(f.cachePath(url), []byte(`[{"name":"$stale"}]`), 0o644))

	body, err := f.FetchOrCache(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"$stale"}]`, string(body))
}

func TestFetcherFetchOrCacheReturnsErrorWithoutCache(t *testing.T) {
	f, err := NewFetcher(t.TempDir())
	require.NoError(t, err)

	_, err = f.FetchOrCache(context.Background(), "http://127.0.0.1:0/does-not-resolve/functions.json")
	assert.Error(t, err)
}

func TestFetcherFetchAllIsolatesPerURLFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f, err := NewFetcher(t.TempDir())
	require.NoError(t, err)

	urls := []string{srv.URL + "/good", srv.URL + "/bad"}
	results := f.FetchAll(context.Background(), urls)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "[]", string(results[0].Body))
	assert.Error(t, results[1].Err)
}

func TestNewFetcherCreatesCacheDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	_, err := NewFetcher(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
