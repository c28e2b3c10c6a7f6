package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crosspack/crosspack/internal/manifest"
	"github.com/stretchr/testify/require"
)

func TestProjectedCompletionPathNormalizesComponents(t *testing.T) {
	path, err := ProjectedCompletionPath("my pkg!", manifest.ShellBash, "completions/my tool.bash")
	require.NoError(t, err)
	require.Equal(t, "packages/bash/my_pkg_--completions--my_tool.bash", path)
}

func TestProjectedCompletionPathEmptyComponentsMapToUnderscore(t *testing.T) {
	path, err := ProjectedCompletionPath("", manifest.ShellZsh, "x")
	require.NoError(t, err)
	require.Equal(t, "packages/zsh/_--x", path)
}

func TestExposeCompletionCopiesFile(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(installRoot, "complete.bash"), []byte("# completion\n"), 0o644))

	storageRelPath, err := ExposeCompletion(l, installRoot, "mypkg", manifest.ShellBash, "complete.bash")
	require.NoError(t, err)

	destination, err := ExposedCompletionPath(l, storageRelPath)
	require.NoError(t, err)
	contents, err := os.ReadFile(destination)
	require.NoError(t, err)
	require.Equal(t, "# completion\n", string(contents))
}

func TestExposeCompletionFailsWhenSourceMissing(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	_, err := ExposeCompletion(l, installRoot, "mypkg", manifest.ShellBash, "missing.bash")
	require.Error(t, err)
}

func TestRemoveExposedCompletionPrunesEmptyDirs(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(installRoot, "complete.bash"), []byte("x"), 0o644))

	storageRelPath, err := ExposeCompletion(l, installRoot, "mypkg", manifest.ShellBash, "complete.bash")
	require.NoError(t, err)

	require.NoError(t, RemoveExposedCompletion(l, storageRelPath))

	destination, err := ExposedCompletionPath(l, storageRelPath)
	require.NoError(t, err)
	_, statErr := os.Stat(destination)
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Dir(destination))
	require.True(t, os.IsNotExist(statErr))
}

func TestValidateRelativeCompletionPathRejectsEscapes(t *testing.T) {
	require.Error(t, validateRelativeCompletionPath(""))
	require.Error(t, validateRelativeCompletionPath("/abs"))
	require.Error(t, validateRelativeCompletionPath("../x"))
}
