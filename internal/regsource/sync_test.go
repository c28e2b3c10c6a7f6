package regsource

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/crosspack/crosspack/internal/sig"
)

// writeSignedRegistryFixture builds a minimal on-disk registry source
// directory: a registry.pub trusted key and one signed package manifest
// under index/<name>/<version>.toml(.sig).
func writeSignedRegistryFixture(t *testing.T, root, name, version, manifestBody string) (fingerprint string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pubHex := hex.EncodeToString(pub)

	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "registry.pub"), []byte(pubHex), 0o644))

	pkgDir := filepath.Join(root, "index", name)
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))

	manifestPath := filepath.Join(pkgDir, version+".toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifestBody), 0o644))

	signature := ed25519.Sign(priv, []byte(manifestBody))
	require.NoError(t, os.WriteFile(manifestPath+".sig", []byte(hex.EncodeToString(signature)), 0o644))

	return sig.SHA256Hex([]byte(pubHex))
}

func TestStoreAddListRemoveSource(t *testing.T) {
	store := New(t.TempDir())

	require.NoError(t, store.AddSource(SourceRecord{
		Name:              "community",
		Kind:              SourceFilesystem,
		Location:          "/tmp/does-not-matter",
		FingerprintSHA256: sampleFingerprint(),
		Enabled:           true,
		Priority:          10,
	}))

	err := store.AddSource(SourceRecord{
		Name:              "community",
		Kind:              SourceFilesystem,
		Location:          "/tmp/other",
		FingerprintSHA256: sampleFingerprint(),
		Enabled:           true,
		Priority:          5,
	})
	require.Error(t, err)

	sources, err := store.ListSources()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "community", sources[0].Name)

	require.NoError(t, store.RemoveSource("community"))
	sources, err = store.ListSources()
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestStoreListSourcesOrdersByPriorityThenName(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.AddSource(SourceRecord{Name: "zeta", Kind: SourceFilesystem, Location: "/a", FingerprintSHA256: sampleFingerprint(), Enabled: true, Priority: 5}))
	require.NoError(t, store.AddSource(SourceRecord{Name: "alpha", Kind: SourceFilesystem, Location: "/b", FingerprintSHA256: sampleFingerprint(), Enabled: true, Priority: 5}))
	require.NoError(t, store.AddSource(SourceRecord{Name: "early", Kind: SourceFilesystem, Location: "/c", FingerprintSHA256: sampleFingerprint(), Enabled: true, Priority: 1}))

	sources, err := store.ListSources()
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, []string{"early", "alpha", "zeta"}, []string{sources[0].Name, sources[1].Name, sources[2].Name})
}

func TestUpdateSourcesSyncsFilesystemSourceAndIndexBecomesQueryable(t *testing.T) {
	stateRoot := t.TempDir()
	upstream := filepath.Join(t.TempDir(), "upstream")

	manifestBody := "name = \"jq\"\nversion = \"1.7.1\"\n\n[[artifacts]]\ntarget = \"x86_64-linux\"\nurl = \"https://example.com/jq.tar.gz\"\nsha256 = \"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855\"\n"
	fingerprint := writeSignedRegistryFixture(t, upstream, "jq", "1.7.1", manifestBody)

	store := New(stateRoot)
	require.NoError(t, store.AddSource(SourceRecord{
		Name:              "local",
		Kind:              SourceFilesystem,
		Location:          upstream,
		FingerprintSHA256: fingerprint,
		Enabled:           true,
		Priority:          1,
	}))

	results, err := store.UpdateSources(nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusUpdated, results[0].Status)
	assert.NotEmpty(t, results[0].SnapshotID)

	idx, err := OpenConfiguredIndex(stateRoot)
	require.NoError(t, err)
	versions, err := idx.PackageVersions("jq")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.7.1", versions[0].Version.String())

	resultsAgain, err := store.UpdateSources(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUpToDate, resultsAgain[0].Status)
}

func TestUpdateSourcesRejectsWrongFingerprint(t *testing.T) {
	stateRoot := t.TempDir()
	upstream := filepath.Join(t.TempDir(), "upstream")
	writeSignedRegistryFixture(t, upstream, "jq", "1.7.1", "name = \"jq\"\nversion = \"1.7.1\"\n")

	store := New(stateRoot)
	require.NoError(t, store.AddSource(SourceRecord{
		Name:              "local",
		Kind:              SourceFilesystem,
		Location:          upstream,
		FingerprintSHA256: sampleFingerprint(),
		Enabled:           true,
		Priority:          1,
	}))

	results, err := store.UpdateSources(nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "source-key-fingerprint-mismatch")
}

func TestOpenConfiguredIndexErrorsWhenNoReadySnapshotForEnabledSources(t *testing.T) {
	stateRoot := t.TempDir()
	store := New(stateRoot)
	require.NoError(t, store.AddSource(SourceRecord{
		Name:              "unsynced",
		Kind:              SourceFilesystem,
		Location:          "/tmp/never-synced",
		FingerprintSHA256: sampleFingerprint(),
		Enabled:           true,
		Priority:          1,
	}))

	_, err := OpenConfiguredIndex(stateRoot)
	require.Error(t, err)
}

func TestOpenConfiguredIndexEmptyWhenNoSourcesConfigured(t *testing.T) {
	idx, err := OpenConfiguredIndex(t.TempDir())
	require.NoError(t, err)
	names, err := idx.SearchNames("")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func sampleFingerprint() string {
	return "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
}
