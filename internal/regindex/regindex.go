// Package regindex reads one synced registry snapshot: a directory with a
// registry.pub trusted key and an index/<package>/<version>.toml (plus
// .toml.sig) tree, per §4.2 and §4.3. It verifies every manifest's
// signature before returning it; it never trusts unsigned or
// wrongly-signed metadata.
package regindex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crosspack/crosspack/internal/manifest"
	"github.com/crosspack/crosspack/internal/sig"
)

// RegistryIndex is a read-only view over one synced snapshot directory.
type RegistryIndex struct {
	root string
}

// Open returns a RegistryIndex rooted at a snapshot directory (a source's
// cache root, or a directly-configured registry root).
func Open(root string) RegistryIndex { return RegistryIndex{root: root} }

// Root returns the snapshot directory this index reads from.
func (idx RegistryIndex) Root() string { return idx.root }

// SearchNames returns every package name under index/ containing needle,
// sorted, restricted to names with at least one loadable manifest.
func (idx RegistryIndex) SearchNames(needle string) ([]string, error) {
	indexRoot := filepath.Join(idx.root, "index")
	entries, err := os.ReadDir(indexRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read registry index: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.Contains(name, needle) {
			continue
		}
		manifests, err := idx.PackageVersions(name)
		if err != nil {
			return nil, err
		}
		if len(manifests) > 0 {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// PackageVersions loads and signature-verifies every manifest for one
// package, newest version first.
func (idx RegistryIndex) PackageVersions(packageName string) ([]*manifest.PackageManifest, error) {
	packageDir := filepath.Join(idx.root, "index", packageName)
	if info, err := os.Stat(packageDir); err != nil || !info.IsDir() {
		return nil, nil
	}

	trustedKeyPath := filepath.Join(idx.root, "registry.pub")
	trustedKeyRaw, err := os.ReadFile(trustedKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read trusted registry key %s: %w", trustedKeyPath, err)
	}
	trustedPublicKeyHex := strings.TrimSpace(string(trustedKeyRaw))
	keyIdentifier := trustedPublicKeyHex
	if len(keyIdentifier) > 16 {
		keyIdentifier = keyIdentifier[:16]
	}

	entries, err := os.ReadDir(packageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory %s: %w", packageName, err)
	}

	var manifests []*manifest.PackageManifest
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		path := filepath.Join(packageDir, entry.Name())

		manifestBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed reading manifest %s: %w", path, err)
		}

		signaturePath := path + ".sig"
		signatureRaw, err := os.ReadFile(signaturePath)
		if err != nil {
			return nil, fmt.Errorf("failed reading manifest signature for key %s: %s: %w", keyIdentifier, signaturePath, err)
		}
		signatureHex := strings.TrimSpace(string(signatureRaw))

		valid, err := sig.VerifyEd25519Hex(manifestBytes, trustedPublicKeyHex, signatureHex)
		if err != nil {
			return nil, fmt.Errorf("failed verifying manifest signature for key %s: %s: %w", keyIdentifier, signaturePath, err)
		}
		if !valid {
			return nil, fmt.Errorf("invalid manifest signature for key %s: manifest %s, signature %s", keyIdentifier, path, signaturePath)
		}

		parsed, err := manifest.ParseManifest(manifestBytes)
		if err != nil {
			return nil, fmt.Errorf("failed parsing manifest %s: %w", path, err)
		}
		manifests = append(manifests, parsed)
	}

	sort.SliceStable(manifests, func(i, j int) bool {
		return manifests[i].Version.GreaterThan(manifests[j].Version)
	})
	return manifests, nil
}
