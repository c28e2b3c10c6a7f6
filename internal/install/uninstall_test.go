package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUninstallReturnsNotInstalledWhenNoReceipt(t *testing.T) {
	l := testLayoutForInstall(t)
	result, err := Uninstall(l, "absent", UninstallOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusNotInstalled, result.Status)
}

func TestUninstallRemovesLeafPackage(t *testing.T) {
	l := testLayoutForInstall(t)

	installRoot := l.PackageDir("leaf", "1.0.0")
	require.NoError(t, os.MkdirAll(installRoot, 0o755))
	_, err := WriteReceipt(l, Receipt{
		Name: "leaf", Version: "1.0.0", InstallReason: ReasonRoot,
		InstallMode: ModeManaged, InstalledAtUnix: 1,
	})
	require.NoError(t, err)

	result, err := Uninstall(l, "leaf", UninstallOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusUninstalled, result.Status)

	_, found, err := ReadReceipt(l, "leaf")
	require.NoError(t, err)
	require.False(t, found)
	_, statErr := os.Stat(installRoot)
	require.True(t, os.IsNotExist(statErr))
}

func TestUninstallBlockedByDependentRoot(t *testing.T) {
	l := testLayoutForInstall(t)

	_, err := WriteReceipt(l, Receipt{
		Name: "app", Version: "1.0.0", InstallReason: ReasonRoot,
		InstallMode: ModeManaged, InstalledAtUnix: 1,
		Dependencies: []string{"libfoo@2.0.0"},
	})
	require.NoError(t, err)
	_, err = WriteReceipt(l, Receipt{
		Name: "libfoo", Version: "2.0.0", InstallReason: ReasonDependency,
		InstallMode: ModeManaged, InstalledAtUnix: 1,
	})
	require.NoError(t, err)

	result, err := Uninstall(l, "libfoo", UninstallOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusBlockedByDependents, result.Status)
	require.Equal(t, []string{"app"}, result.BlockingRoots)
}

func TestUninstallPrunesUnreachableDependencies(t *testing.T) {
	l := testLayoutForInstall(t)

	require.NoError(t, os.MkdirAll(l.PackageDir("app", "1.0.0"), 0o755))
	require.NoError(t, os.MkdirAll(l.PackageDir("libfoo", "2.0.0"), 0o755))
	_, err := WriteReceipt(l, Receipt{
		Name: "app", Version: "1.0.0", InstallReason: ReasonRoot,
		InstallMode: ModeManaged, InstalledAtUnix: 1,
		Dependencies: []string{"libfoo@2.0.0"},
	})
	require.NoError(t, err)
	_, err = WriteReceipt(l, Receipt{
		Name: "libfoo", Version: "2.0.0", InstallReason: ReasonDependency,
		InstallMode: ModeManaged, InstalledAtUnix: 1,
	})
	require.NoError(t, err)

	result, err := Uninstall(l, "app", UninstallOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusUninstalled, result.Status)
	require.Equal(t, []string{"libfoo"}, result.PrunedDependencies)

	_, found, err := ReadReceipt(l, "libfoo")
	require.NoError(t, err)
	require.False(t, found)
}

func TestUninstallRepairsStaleStateWhenInstallTreeMissing(t *testing.T) {
	l := testLayoutForInstall(t)
	_, err := WriteReceipt(l, Receipt{
		Name: "ghost", Version: "1.0.0", InstallReason: ReasonRoot,
		InstallMode: ModeManaged, InstalledAtUnix: 1,
	})
	require.NoError(t, err)

	result, err := Uninstall(l, "ghost", UninstallOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusRepairedStaleState, result.Status)
}

func TestSafeCachePrunePathRejectsEscapes(t *testing.T) {
	l := testLayoutForInstall(t)
	_, err := safeCachePrunePath(l, "relative/path")
	require.Error(t, err)
	_, err = safeCachePrunePath(l, filepath.Join(l.Prefix(), "..", "escape"))
	require.Error(t, err)
	_, err = safeCachePrunePath(l, filepath.Join(l.ArtifactsCacheDir(), "foo", "1.0.0", "t", "artifact.zip"))
	require.NoError(t, err)
}

func TestPackageReachableFollowsDependencyChain(t *testing.T) {
	depMap := map[string][]string{
		"app":  {"mid"},
		"mid":  {"leaf"},
		"leaf": nil,
	}
	require.True(t, packageReachable("app", "leaf", depMap))
	require.False(t, packageReachable("leaf", "app", depMap))
}
