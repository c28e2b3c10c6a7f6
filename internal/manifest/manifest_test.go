package manifest

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspack/crosspack/internal/crosserr"
)

const validManifest = `
name = "app"
version = "1.0.0"
license = "MIT"

[dependencies]
lib = "^1"

[[artifacts]]
target = "x86_64-linux"
url = "https://example.com/app-1.0.0-x86_64-linux.tar.gz"
sha256 = "` + sha256Placeholder + `"
`

const sha256Placeholder = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestParseManifestValid(t *testing.T) {
	m, err := ParseManifest([]byte(validManifest))
	require.NoError(t, err)
	assert.Equal(t, "app", m.Name)
	assert.Equal(t, "1.0.0", m.Version.String())
	require.Contains(t, m.Dependencies, "lib")
	assert.True(t, m.Dependencies["lib"].Check(mustVersion(t, "1.2.0")))
}

func TestParseManifestRejectsSelfConflict(t *testing.T) {
	data := `
name = "app"
version = "1.0.0"
[conflicts]
app = "*"
`
	_, err := ParseManifest([]byte(data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, crosserr.ErrInvalidManifest))
}

func TestParseManifestRejectsSelfReplace(t *testing.T) {
	data := `
name = "app"
version = "1.0.0"
[replaces]
app = "*"
`
	_, err := ParseManifest([]byte(data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, crosserr.ErrInvalidManifest))
}

func TestParseManifestRejectsDuplicateGuiAppID(t *testing.T) {
	data := `
name = "app"
version = "1.0.0"

[[artifacts]]
target = "x86_64-linux"
url = "https://example.com/app.tar.gz"
sha256 = "` + sha256Placeholder + `"

[[artifacts.gui_apps]]
app_id = "app"
display_name = "App"
exec = "app"

[[artifacts.gui_apps]]
app_id = "app"
display_name = "App Again"
exec = "app"
`
	_, err := ParseManifest([]byte(data))
	require.Error(t, err)
}

func TestParseManifestRejectsEmptyGuiAppID(t *testing.T) {
	data := `
name = "app"
version = "1.0.0"

[[artifacts]]
target = "x86_64-linux"
url = "https://example.com/app.tar.gz"
sha256 = "` + sha256Placeholder + `"

[[artifacts.gui_apps]]
app_id = "  "
display_name = "App"
exec = "app"
`
	_, err := ParseManifest([]byte(data))
	require.Error(t, err)
}

func TestParseManifestRejectsBadProtocolScheme(t *testing.T) {
	data := `
name = "app"
version = "1.0.0"

[[artifacts]]
target = "x86_64-linux"
url = "https://example.com/app.tar.gz"
sha256 = "` + sha256Placeholder + `"

[[artifacts.gui_apps]]
app_id = "app"
display_name = "App"
exec = "app"

[[artifacts.gui_apps.protocols]]
scheme = "1bad"
`
	_, err := ParseManifest([]byte(data))
	require.Error(t, err)
}

func TestParseManifestRejectsMalformedTOML(t *testing.T) {
	_, err := ParseManifest([]byte("not valid [[[ toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, crosserr.ErrInvalidManifest))
}

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	require.NoError(t, err)
	return v
}
