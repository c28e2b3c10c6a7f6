package layout

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crosspack/crosspack/internal/manifest"
)

func TestPrefixLayoutPaths(t *testing.T) {
	l := New("/home/u/.crosspack")

	assert.Equal(t, filepath.Join("/home/u/.crosspack", "pkgs"), l.PkgsDir())
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "bin"), l.BinDir())
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "share", "completions"), l.CompletionsDir())
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "share", "completions", "packages"), l.PackageCompletionsDir())
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "share", "completions", "packages", "bash"), l.PackageCompletionsShellDir(manifest.ShellBash))
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "share", "gui", "launchers"), l.GuiLaunchersDir())
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "cache", "artifacts"), l.ArtifactsCacheDir())
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "state", "pins", "jq.pin"), l.PinPath("jq"))
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "pkgs", "jq", "1.7.1"), l.PackageDir("jq", "1.7.1"))
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "state", "installed", "jq.receipt"), l.ReceiptPath("jq"))
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "state", "transactions", "active"), l.TransactionActivePath())
	assert.Equal(t, filepath.Join("/home/u/.crosspack", "state", "transactions", "abc123.journal"), l.TransactionJournalPath("abc123"))
}

func TestArtifactCachePath(t *testing.T) {
	l := New("/home/u/.crosspack")
	got := l.ArtifactCachePath("jq", "1.7.1", "x86_64-unknown-linux-gnu", manifest.ArchiveTarGz)
	want := filepath.Join("/home/u/.crosspack", "cache", "artifacts", "jq", "1.7.1", "x86_64-unknown-linux-gnu", "artifact.tar.gz")
	assert.Equal(t, want, got)
}

func TestEnsureBaseDirsCreatesEveryDirectory(t *testing.T) {
	l := New(t.TempDir())
	err := l.EnsureBaseDirs()
	assert.NoError(t, err)
	for _, dir := range l.baseDirs() {
		assert.DirExists(t, dir)
	}
}
