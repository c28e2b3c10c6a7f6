package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crosspack/crosspack/internal/manifest"
	"github.com/stretchr/testify/require"
)

func sampleGuiApp() manifest.GuiApp {
	return manifest.GuiApp{
		AppID:       "MyApp",
		DisplayName: "My App",
		Exec:        "bin/myapp",
		Icon:        "share/icons/myapp.png",
		Categories:  []string{"Utility"},
		Protocols:   []manifest.GuiProtocol{{Scheme: "myapp"}},
		FileAssociations: []manifest.GuiFileAssociation{
			{MimeType: "application/x-myapp", Extensions: []string{".myapp"}},
		},
	}
}

func TestProjectedGuiAssetsIncludesAllOwnershipKeys(t *testing.T) {
	assets, err := ProjectedGuiAssets("mypkg", sampleGuiApp())
	require.NoError(t, err)

	keys := sortGuiAssetKeys(assets)
	require.Contains(t, keys, "app:myapp")
	require.Contains(t, keys, "handler:myapp")
	require.Contains(t, keys, "protocol:myapp")
	require.Contains(t, keys, "mime:application/x-myapp")
	require.Contains(t, keys, "extension:.myapp")
}

func TestProjectedGuiAssetsRejectsDuplicateKeys(t *testing.T) {
	app := sampleGuiApp()
	app.Protocols = []manifest.GuiProtocol{{Scheme: "myapp"}, {Scheme: "MyApp"}}
	_, err := ProjectedGuiAssets("mypkg", app)
	require.Error(t, err)
}

func TestExposeGuiAppWritesLauncherAndHandler(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(installRoot, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(installRoot, "bin", "myapp"), []byte("bin"), 0o755))

	assets, err := ExposeGuiApp(l, installRoot, "mypkg", sampleGuiApp())
	require.NoError(t, err)
	require.NotEmpty(t, assets)

	for _, asset := range assets {
		path, err := GuiAssetPath(l, asset.RelPath)
		require.NoError(t, err)
		_, statErr := os.Stat(path)
		require.NoError(t, statErr)
	}
}

func TestExposeGuiAppFailsWhenExecMissing(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	_, err := ExposeGuiApp(l, installRoot, "mypkg", sampleGuiApp())
	require.Error(t, err)
}

func TestRemoveExposedGuiAssetPrunesEmptyDirs(t *testing.T) {
	l := testLayoutForInstall(t)
	installRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(installRoot, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(installRoot, "bin", "myapp"), []byte("bin"), 0o755))

	assets, err := ExposeGuiApp(l, installRoot, "mypkg", sampleGuiApp())
	require.NoError(t, err)

	for _, asset := range assets {
		require.NoError(t, RemoveExposedGuiAsset(l, asset))
	}
}

func TestNormalizedProtocolSchemeRejectsInvalid(t *testing.T) {
	_, err := normalizedProtocolScheme("")
	require.Error(t, err)
	_, err = normalizedProtocolScheme("1bad")
	require.Error(t, err)
	scheme, err := normalizedProtocolScheme("My-App+v1")
	require.NoError(t, err)
	require.Equal(t, "my-app+v1", scheme)
}

func TestNormalizedExtensionAddsLeadingDot(t *testing.T) {
	ext, err := normalizedExtension("MyApp")
	require.NoError(t, err)
	require.Equal(t, ".myapp", ext)
}

func TestGuiStateRoundTrips(t *testing.T) {
	l := testLayoutForInstall(t)
	assets := []GuiAsset{
		{Key: "app:myapp", RelPath: "launchers/mypkg--myapp.command"},
		{Key: "handler:myapp", RelPath: "handlers/mypkg--myapp.meta"},
	}

	_, err := WriteGuiState(l, "mypkg", assets)
	require.NoError(t, err)

	loaded, err := ReadGuiState(l, "mypkg")
	require.NoError(t, err)
	require.Equal(t, assets, loaded)

	require.NoError(t, RemoveGuiState(l, "mypkg"))
	loaded, err = ReadGuiState(l, "mypkg")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestReadGuiStateNilWhenMissing(t *testing.T) {
	l := testLayoutForInstall(t)
	loaded, err := ReadGuiState(l, "absent")
	require.NoError(t, err)
	require.Nil(t, loaded)
}
