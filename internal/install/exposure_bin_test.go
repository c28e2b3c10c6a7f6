package install

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/crosspack/crosspack/internal/layout"
	"github.com/stretchr/testify/require"
)

func testLayoutForInstall(t *testing.T) layout.PrefixLayout {
	t.Helper()
	l := layout.New(t.TempDir())
	require.NoError(t, l.EnsureBaseDirs())
	return l
}

func TestExposeBinaryCreatesEntry(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(installRoot, "mytool"), []byte("#!/bin/sh\necho hi\n"), 0o755))

	require.NoError(t, ExposeBinary(l, installRoot, "mytool", "mytool"))

	destination := BinPath(l, "mytool")
	info, err := os.Lstat(destination)
	require.NoError(t, err)
	if runtime.GOOS == "windows" {
		require.True(t, info.Mode().IsRegular())
	} else {
		require.True(t, info.Mode()&os.ModeSymlink != 0)
	}
}

func TestExposeBinaryFallsBackToMacOSBundlePath(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	bundleDir := filepath.Join(installRoot, "Contents", "MacOS")
	require.NoError(t, os.MkdirAll(bundleDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundleDir, "mytool"), []byte("bin"), 0o755))

	require.NoError(t, ExposeBinary(l, installRoot, "mytool", "MyTool.app/Contents/MacOS/mytool"))

	_, err := os.Lstat(BinPath(l, "mytool"))
	require.NoError(t, err)
}

func TestExposeBinaryFailsWhenSourceMissing(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	err := ExposeBinary(l, installRoot, "mytool", "mytool")
	require.Error(t, err)
}

func TestRemoveExposedBinaryToleratesAbsence(t *testing.T) {
	l := testLayoutForInstall(t)
	require.NoError(t, RemoveExposedBinary(l, "nonexistent"))
}

func TestValidateRelativeBinaryPathRejectsEscapes(t *testing.T) {
	require.Error(t, ValidateRelativeBinaryPath(""))
	require.Error(t, ValidateRelativeBinaryPath("/abs/path"))
	require.Error(t, ValidateRelativeBinaryPath("../escape"))
	require.NoError(t, ValidateRelativeBinaryPath("bin/tool"))
}
