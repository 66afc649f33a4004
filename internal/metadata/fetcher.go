package metadata

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves metadata JSON over HTTP with a disk-backed cache
// fallback. One Fetcher is owned process-wide by the Manager.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher backed by cacheDir, creating the directory
// if it does not exist. Failure to create the cache directory is the one
// fatal condition in this subsystem.
func NewFetcher(cacheDir string) (*Fetcher, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errors.Errorf("initializing metadata cache directory %q: %w", cacheDir, err)
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}, nil
}

// cachePath returns the URL-safe-base64-no-padding cache file for url.
func (f *Fetcher) cachePath(url string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(url)) + ".json"
	return filepath.Join(f.cacheDir, name)
}

// FetchOrCache attempts a network GET of url; on success it overwrites the
// cache file and returns the body. On network failure it falls back to the
// cache file if present, else returns an error.
func (f *Fetcher) FetchOrCache(ctx context.Context, url string) ([]byte, error) {
	body, err := f.fetch(ctx, url)
	if err == nil {
		if writeErr := os.WriteFile(f.cachePath(url), body, 0o644); writeErr != nil {
			// Cache write failure never fails the fetch; the response is
			// still usable this run.
			return body, nil
		}
		return body, nil
	}

	cached, readErr := os.ReadFile(f.cachePath(url))
	if readErr != nil {
		return nil, errors.Errorf("fetching %q: %w (no cache: %v)", url, err, readErr)
	}
	return cached, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Errorf("building request for %q: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Errorf("GET %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("GET %q: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Errorf("reading response body for %q: %w", url, err)
	}
	return body, nil
}

// FetchResult is one URL's outcome from FetchAll.
type FetchResult struct {
	URL  string
	Body []byte
	Err  error
}

// FetchAll runs FetchOrCache for every url concurrently via errgroup,
// tolerating per-URL failures: the batch never aborts because one source
// failed, and every URL's outcome (success or error) is reported.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []FetchResult {
	results := make([]FetchResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			body, err := f.FetchOrCache(gctx, url)
			results[i] = FetchResult{URL: url, Body: body, Err: err}
			return nil // never abort siblings on one URL's failure
		})
	}
	_ = g.Wait()

	return results
}
