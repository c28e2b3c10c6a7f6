package main

import (
	"fmt"
	"path/filepath"

	"github.com/crosspack/crosspack/internal/config"
	"github.com/crosspack/crosspack/internal/layout"
	"github.com/crosspack/crosspack/internal/manifest"
	"github.com/crosspack/crosspack/internal/regindex"
	"github.com/crosspack/crosspack/internal/regsource"
)

// packageIndex is the capability every CLI command needing to read the
// registry depends on. *regsource.ConfiguredIndex (the default, multi-source
// view) and regindex.RegistryIndex (a single synced snapshot, selected via
// --registry-root) both satisfy it without an adapter.
type packageIndex interface {
	SearchNames(needle string) ([]string, error)
	PackageVersions(packageName string) ([]*manifest.PackageManifest, error)
}

// prefixLayout resolves the active user prefix from the environment and
// ensures its directory tree exists.
func prefixLayout() (layout.PrefixLayout, error) {
	cfg, err := config.Load()
	if err != nil {
		return layout.PrefixLayout{}, err
	}
	l := layout.New(cfg.Prefix)
	if err := l.EnsureBaseDirs(); err != nil {
		return layout.PrefixLayout{}, err
	}
	return l, nil
}

// registryStateRoot is where sources.toml and every source's synced cache
// live under a prefix, per §4.5.
func registryStateRoot(l layout.PrefixLayout) string {
	return filepath.Join(l.StateDir(), "registry")
}

// openIndex opens the registry index commands search and resolve against:
// registryRootFlag, when set, names a legacy single-directory snapshot
// directly; otherwise the configured multi-source view is used.
func openIndex(l layout.PrefixLayout) (packageIndex, error) {
	if registryRootFlag != "" {
		idx := regindex.Open(registryRootFlag)
		return idx, nil
	}
	idx, err := regsource.OpenConfiguredIndex(registryStateRoot(l))
	if err != nil {
		return nil, fmt.Errorf("failed opening registry index: %w", err)
	}
	return idx, nil
}

// latestVersion returns the highest version among versions, which
// PackageVersions already returns newest-first.
func latestVersion(versions []*manifest.PackageManifest) *manifest.PackageManifest {
	if len(versions) == 0 {
		return nil
	}
	return versions[0]
}
