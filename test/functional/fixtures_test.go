package functional

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ed25519"

	"github.com/crosspack/crosspack/internal/sig"
)

// fixtureSHA256 is a placeholder hash; dry-run plans never verify it
// (verification happens only against real downloaded bytes in InstallResolved).
var fixtureSHA256 = strings.Repeat("0", 64)

// registryFixture is a signed, filesystem-backed registry snapshot built
// fresh per scenario, covering the manifest graphs from spec.md §8's
// end-to-end scenarios 1-3 (transitive install order, pin-forced older
// transitive, capability provider preferred by name).
type registryFixture struct {
	root                 string
	publicKeyFingerprint string
}

type fixtureManifest struct {
	name, version, body string
}

func buildRegistryFixture(root string) (*registryFixture, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generating fixture signing key: %w", err)
	}
	publicKeyHex := hex.EncodeToString(publicKey)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(root, "registry.pub"), []byte(publicKeyHex), 0o644); err != nil {
		return nil, err
	}

	for _, m := range fixtureManifests() {
		if err := writeSignedManifest(root, privateKey, m); err != nil {
			return nil, err
		}
	}

	return &registryFixture{
		root:                 root,
		publicKeyFingerprint: sig.SHA256Hex([]byte(publicKeyHex)),
	}, nil
}

func writeSignedManifest(root string, privateKey ed25519.PrivateKey, m fixtureManifest) error {
	dir := filepath.Join(root, "index", m.name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	manifestPath := filepath.Join(dir, m.version+".toml")
	body := []byte(m.body)
	if err := os.WriteFile(manifestPath, body, 0o644); err != nil {
		return err
	}
	signature := ed25519.Sign(privateKey, body)
	return os.WriteFile(manifestPath+".sig", []byte(hex.EncodeToString(signature)), 0o644)
}

// fixtureTargets covers every triple internal/install.HostTarget can
// produce, so a dry-run plan resolves regardless of which host the
// functional suite runs on.
var fixtureTargets = []string{
	"x86_64-unknown-linux-gnu", "x86_64-unknown-linux-musl",
	"aarch64-unknown-linux-gnu", "aarch64-unknown-linux-musl",
	"x86_64-apple-darwin", "aarch64-apple-darwin",
	"x86_64-pc-windows-msvc", "aarch64-pc-windows-msvc",
}

func fixtureArtifactsTOML(pkg string) string {
	var out string
	for _, target := range fixtureTargets {
		out += fmt.Sprintf(`
[[artifacts]]
target = %q
url = "https://example.invalid/%s/%s.tar.gz"
sha256 = %q
`, target, pkg, target, fixtureSHA256)
	}
	return out
}

// fixtureManifests encodes:
//   - app 1.0.0 -> lib ^1, lib 1.5.0 and 1.2.0, zlib 2.1.0 (scenarios 1 & 2)
//   - gcc 2.0.0 provides=[compiler], compiler 1.0.0 (scenario 3)
func fixtureManifests() []fixtureManifest {
	return []fixtureManifest{
		{"app", "1.0.0", `
name = "app"
version = "1.0.0"
[dependencies]
lib = "^1"
` + fixtureArtifactsTOML("app")},
		{"lib", "1.5.0", `
name = "lib"
version = "1.5.0"
[dependencies]
zlib = "^2"
` + fixtureArtifactsTOML("lib")},
		{"lib", "1.2.0", `
name = "lib"
version = "1.2.0"
[dependencies]
zlib = "^2"
` + fixtureArtifactsTOML("lib")},
		{"zlib", "2.1.0", `
name = "zlib"
version = "2.1.0"
` + fixtureArtifactsTOML("zlib")},
		{"gcc", "2.0.0", `
name = "gcc"
version = "2.0.0"
provides = ["compiler"]
` + fixtureArtifactsTOML("gcc")},
		{"compiler", "1.0.0", `
name = "compiler"
version = "1.0.0"
` + fixtureArtifactsTOML("compiler")},
		{"toolchain", "1.0.0", `
name = "toolchain"
version = "1.0.0"
[dependencies]
compiler = "*"
` + fixtureArtifactsTOML("toolchain")},
	}
}
