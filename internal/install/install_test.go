package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crosspack/crosspack/internal/archive"
	"github.com/crosspack/crosspack/internal/manifest"
	"github.com/crosspack/crosspack/internal/txn"
)

type fakeFetcher struct {
	payload []byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, destPath string) error {
	return os.WriteFile(destPath, f.payload, 0o644)
}

type recordingExtractor struct {
	binaryContents []byte
}

func (e *recordingExtractor) Extract(archivePath string, kind manifest.ArchiveKind, destDir string, opts archive.Options) error {
	return os.WriteFile(filepath.Join(destDir, "bin", "mytool"), e.binaryContents, 0o755)
}

func testManifestWithArtifact(t *testing.T, target string, payload []byte) *manifest.PackageManifest {
	t.Helper()
	sum := sha256.Sum256(payload)
	shaHex := hex.EncodeToString(sum[:])
	doc := `
name = "mytool"
version = "1.0.0"

[[artifacts]]
target = "` + target + `"
url = "https://example.test/mytool.tar.gz"
sha256 = "` + shaHex + `"
archive = "tar.gz"

[[artifacts.binaries]]
name = "mytool"
path = "bin/mytool"
`
	m, err := manifest.ParseManifest([]byte(doc))
	require.NoError(t, err)
	return m
}

func TestInstallResolvedHappyPath(t *testing.T) {
	l := testLayoutForInstall(t)
	payload := []byte("fake archive bytes")
	m := testManifestWithArtifact(t, "x86_64-unknown-linux-gnu", payload)

	tx, err := txn.Begin(l, "install", "")
	require.NoError(t, err)

	receipt, err := InstallResolved(
		context.Background(), l, tx, m, nil, ReasonRoot,
		&fakeFetcher{payload: payload},
		&recordingExtractor{binaryContents: []byte("bin")},
		Options{Target: "x86_64-unknown-linux-gnu"},
	)
	require.NoError(t, err)
	require.Equal(t, "mytool", receipt.Name)
	require.Equal(t, ModeManaged, receipt.InstallMode)
	require.Contains(t, receipt.ExposedBins, "mytool")

	require.NoError(t, tx.Commit())

	loaded, found, err := ReadReceipt(l, "mytool")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1.0.0", loaded.Version)

	_, statErr := os.Lstat(BinPath(l, "mytool"))
	require.NoError(t, statErr)
}

func TestInstallResolvedFailsOnHashMismatch(t *testing.T) {
	l := testLayoutForInstall(t)
	m := testManifestWithArtifact(t, "x86_64-unknown-linux-gnu", []byte("expected"))
	tx, err := txn.Begin(l, "install", "")
	require.NoError(t, err)

	_, err = InstallResolved(
		context.Background(), l, tx, m, nil, ReasonRoot,
		&fakeFetcher{payload: []byte("tampered")},
		&recordingExtractor{binaryContents: []byte("bin")},
		Options{Target: "x86_64-unknown-linux-gnu"},
	)
	require.Error(t, err)
}

func TestInstallResolvedFailsWhenNoArtifactForTarget(t *testing.T) {
	l := testLayoutForInstall(t)
	m := testManifestWithArtifact(t, "aarch64-apple-darwin", []byte("payload"))
	tx, err := txn.Begin(l, "install", "")
	require.NoError(t, err)

	_, err = InstallResolved(
		context.Background(), l, tx, m, nil, ReasonRoot,
		&fakeFetcher{payload: []byte("payload")},
		&recordingExtractor{binaryContents: []byte("bin")},
		Options{Target: "x86_64-unknown-linux-gnu"},
	)
	require.Error(t, err)
}

func TestPlanInstallReportsWillDownloadWhenCacheEmpty(t *testing.T) {
	l := testLayoutForInstall(t)
	m := testManifestWithArtifact(t, "x86_64-unknown-linux-gnu", []byte("payload"))

	plan, err := PlanInstall(l, m, Options{Target: "x86_64-unknown-linux-gnu"})
	require.NoError(t, err)
	require.True(t, plan.WillDownload)
	require.Equal(t, []string{"mytool"}, plan.Binaries)
}
