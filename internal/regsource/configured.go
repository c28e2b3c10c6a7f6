package regsource

import (
	"fmt"
	"sort"

	"github.com/crosspack/crosspack/internal/manifest"
	"github.com/crosspack/crosspack/internal/regindex"
)

// ConfiguredIndex is the aggregate view over every enabled, ready
// registry source configured in sources.toml, queried in priority order.
type ConfiguredIndex struct {
	sources []configuredSnapshotSource
}

type configuredSnapshotSource struct {
	name  string
	index regindex.RegistryIndex
}

// OpenConfiguredIndex builds a ConfiguredIndex from sources.toml under
// stateRoot. A source is included only when it is enabled and its cache
// holds a ready snapshot; if sources.toml names enabled sources but none
// of them has a ready snapshot, that is an error rather than an empty
// index — the caller configured something it expects to be usable.
func OpenConfiguredIndex(stateRoot string) (*ConfiguredIndex, error) {
	store := New(stateRoot)
	enabled, hasSourcesFile, err := store.LoadEnabledSources()
	if err != nil {
		return nil, err
	}

	var configured []configuredSnapshotSource
	for _, source := range enabled {
		cacheRoot := store.CacheRoot(source.Name)
		ready, err := SourceHasReadySnapshot(cacheRoot)
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}
		configured = append(configured, configuredSnapshotSource{
			name:  source.Name,
			index: regindex.Open(cacheRoot),
		})
	}

	if len(configured) > 0 {
		return &ConfiguredIndex{sources: configured}, nil
	}
	if !hasSourcesFile || len(enabled) == 0 {
		return &ConfiguredIndex{}, nil
	}
	return nil, fmt.Errorf("no ready snapshot exists for enabled sources")
}

// SearchNames returns the deduplicated, sorted union of matching names
// across every configured source.
func (c *ConfiguredIndex) SearchNames(needle string) ([]string, error) {
	deduped := map[string]bool{}
	for _, source := range c.sources {
		names, err := source.index.SearchNames(needle)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			deduped[name] = true
		}
	}

	names := make([]string, 0, len(deduped))
	for name := range deduped {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// PackageVersions returns the manifests for package from the first
// configured source (in priority order) that has any, or nil if none do.
func (c *ConfiguredIndex) PackageVersions(packageName string) ([]*manifest.PackageManifest, error) {
	_, manifests, err := c.PackageVersionsWithSource(packageName)
	if err != nil {
		return nil, err
	}
	return manifests, nil
}

// PackageVersionsWithSource is PackageVersions plus the name of the
// source the result came from.
func (c *ConfiguredIndex) PackageVersionsWithSource(packageName string) (sourceName string, versions []*manifest.PackageManifest, err error) {
	for _, source := range c.sources {
		manifests, err := source.index.PackageVersions(packageName)
		if err != nil {
			return "", nil, fmt.Errorf("failed loading package '%s' from configured source '%s': %w", packageName, source.name, err)
		}
		if len(manifests) > 0 {
			return source.name, manifests, nil
		}
	}
	return "", nil, nil
}
