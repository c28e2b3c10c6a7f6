// Package fetch implements the default ArtifactFetcher capability of §4.9:
// downloading a package artifact over HTTPS into the artifact cache,
// streaming to a `.partial` sibling and renaming into place only once the
// download completes, with bounded retry on transient failures.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/crosspack/crosspack/internal/httputil"
)

// Fetcher is the ArtifactFetcher capability: retrieve the content at url
// into destPath.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// DefaultFetcher retrieves artifacts over HTTPS using a hardened client
// with SSRF protection and a bounded exponential-backoff retry policy.
type DefaultFetcher struct {
	client     *http.Client
	maxRetries uint64
}

// NewDefaultFetcher builds a DefaultFetcher. A zero ClientOptions uses
// httputil's security-hardened defaults.
func NewDefaultFetcher(opts httputil.ClientOptions) *DefaultFetcher {
	return &DefaultFetcher{
		client:     httputil.NewSecureClient(opts),
		maxRetries: 4,
	}
}

// Fetch downloads url to destPath, writing first to destPath+".partial"
// and renaming atomically once the transfer completes successfully.
func (f *DefaultFetcher) Fetch(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(destPath), err)
	}

	partialPath := destPath + ".partial"
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries)
	policy = backoff.WithContext(policy, ctx)

	err := backoff.Retry(func() error {
		return f.downloadOnce(ctx, url, partialPath)
	}, policy)
	if err != nil {
		_ = os.Remove(partialPath)
		return fmt.Errorf("failed to fetch artifact %s: %w", url, err)
	}

	if err := os.Rename(partialPath, destPath); err != nil {
		return fmt.Errorf("failed to finalize downloaded artifact: %w", err)
	}
	return nil
}

func (f *DefaultFetcher) downloadOnce(ctx context.Context, url, partialPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed building request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url))
	}

	out, err := os.OpenFile(partialPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed creating %s: %w", partialPath, err))
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed streaming response body: %w", err)
	}
	return nil
}

// DefaultOptions returns fetch timeouts appropriate for artifact downloads,
// which can be much larger than registry metadata requests.
func DefaultOptions() httputil.ClientOptions {
	opts := httputil.DefaultOptions()
	opts.Timeout = 10 * time.Minute
	opts.ResponseHeaderTimeout = 30 * time.Second
	return opts
}
