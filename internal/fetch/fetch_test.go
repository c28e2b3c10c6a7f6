package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspack/crosspack/internal/httputil"
)

func TestFetchWritesFileAndRemovesPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("artifact-bytes"))
	}))
	defer server.Close()

	destDir := t.TempDir()
	destPath := filepath.Join(destDir, "artifact.tar.gz")

	fetcher := NewDefaultFetcher(httputil.DefaultOptions())
	require.NoError(t, fetcher.Fetch(context.Background(), server.URL, destPath))

	contents, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, "artifact-bytes", string(contents))

	_, err = os.Stat(destPath + ".partial")
	assert.True(t, os.IsNotExist(err))
}

func TestFetchFailsPermanentlyOn404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "artifact.tar.gz")
	fetcher := NewDefaultFetcher(httputil.DefaultOptions())
	err := fetcher.Fetch(context.Background(), server.URL, destPath)
	require.Error(t, err)

	_, statErr := os.Stat(destPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchRetriesOn5xxThenSucceeds(t *testing.T) {
	attempt := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "artifact.bin")
	fetcher := NewDefaultFetcher(httputil.DefaultOptions())
	require.NoError(t, fetcher.Fetch(context.Background(), server.URL, destPath))
	assert.GreaterOrEqual(t, attempt, 2)
}
