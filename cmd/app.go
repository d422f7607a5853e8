package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/safefind/safefind/internal/blob"
	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/facematch"
)

// newMatcher wires the model server client into a Matcher.
// A nil cache disables embedding caching.
func newMatcher(cfg *config.Config, cache embedding.Cache) *facematch.Matcher {
	client := embedding.NewClient(cfg.Embedding.URL)
	locator := facematch.NewLocator(facematch.NewRemoteDetector(client), cfg.Match)
	extractor := embedding.NewExtractor(embedding.RemoteLoader(client))

	opts := []facematch.Option{
		facematch.WithInferenceParallelism(cfg.Scan.InferenceParallelism),
		facematch.WithLogger(slog.Default()),
	}
	if cache != nil {
		opts = append(opts, facematch.WithCache(cache))
	}
	return facematch.NewMatcher(locator, extractor, cfg.Match.Threshold, opts...)
}

// newBlobStore returns the S3 store when a bucket is configured, otherwise an
// in-memory store. Foreign http(s) references always go through the HTTP fetcher.
func newBlobStore(cfg *config.Config) (blob.Store, error) {
	fetcher := blob.NewHTTPFetcher(cfg.Scan.FetchTimeout(), cfg.Scan.FetchRateLimit)
	if !cfg.Storage.Enabled() {
		slog.Warn("S3_BUCKET not set, uploaded images are kept in memory only")
		return &memoryWithHTTP{MemoryStore: blob.NewMemoryStore(), http: fetcher}, nil
	}
	store, err := blob.NewS3Store(blob.Connect(cfg.Storage), cfg.Storage, fetcher)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}
	return store, nil
}

// memoryWithHTTP serves uploads from memory and everything else over HTTP.
type memoryWithHTTP struct {
	*blob.MemoryStore
	http *blob.HTTPFetcher
}

func (m *memoryWithHTTP) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return m.http.Fetch(ctx, ref)
	}
	return m.MemoryStore.Fetch(ctx, ref)
}

// readImageFile reads an image from disk.
func readImageFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
