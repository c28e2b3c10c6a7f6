// Package manifest implements the package manifest model and validation of
// §4.1: parsing a trusted TOML blob into a PackageManifest, and the
// invariants that must hold of it.
package manifest

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/crosspack/crosspack/internal/crosserr"
)

var (
	errInvalidManifest    = crosserr.ErrInvalidManifest
	errUnknownArchiveKind = crosserr.ErrUnknownArchiveKind
)

// rawManifest mirrors the TOML wire shape. Version and the constraint maps
// are decoded as strings first and parsed explicitly, since semver types do
// not round-trip through BurntSushi/toml's reflection-based decoder.
type rawManifest struct {
	Name      string            `toml:"name"`
	Version   string            `toml:"version"`
	License   string            `toml:"license,omitempty"`
	Homepage  string            `toml:"homepage,omitempty"`
	Provides  []string          `toml:"provides,omitempty"`
	Conflicts map[string]string `toml:"conflicts,omitempty"`
	Replaces  map[string]string `toml:"replaces,omitempty"`
	Deps      map[string]string `toml:"dependencies,omitempty"`
	Artifacts []Artifact        `toml:"artifacts,omitempty"`
}

// PackageManifest is a parsed, validated package descriptor: one version of
// one package, its capabilities, its constraint relationships to other
// packages, and its per-target artifacts.
type PackageManifest struct {
	Name       string
	Version    *semver.Version
	License    string
	Homepage   string
	Provides   []string
	Conflicts  map[string]*semver.Constraints
	Replaces   map[string]*semver.Constraints
	Dependencies map[string]*semver.Constraints
	Artifacts  []Artifact
}

// ParseManifest parses a TOML document into a PackageManifest, enforcing
// the invariants of §4.1 and §3: a manifest may not conflict with or
// replace itself, every GUI app_id must be non-empty and unique within its
// artifact, and every declared protocol scheme must match the URI-scheme
// grammar.
func ParseManifest(data []byte) (*PackageManifest, error) {
	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse crosspack manifest: %v", errInvalidManifest, err)
	}

	version, err := semver.NewVersion(raw.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version %q: %v", errInvalidManifest, raw.Version, err)
	}

	conflicts, err := parseConstraintMap(raw.Conflicts)
	if err != nil {
		return nil, fmt.Errorf("%w: in conflicts: %v", errInvalidManifest, err)
	}
	replaces, err := parseConstraintMap(raw.Replaces)
	if err != nil {
		return nil, fmt.Errorf("%w: in replaces: %v", errInvalidManifest, err)
	}
	deps, err := parseConstraintMap(raw.Deps)
	if err != nil {
		return nil, fmt.Errorf("%w: in dependencies: %v", errInvalidManifest, err)
	}

	m := &PackageManifest{
		Name:         raw.Name,
		Version:      version,
		License:      raw.License,
		Homepage:     raw.Homepage,
		Provides:     raw.Provides,
		Conflicts:    conflicts,
		Replaces:     replaces,
		Dependencies: deps,
		Artifacts:    raw.Artifacts,
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseConstraintMap(in map[string]string) (map[string]*semver.Constraints, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]*semver.Constraints, len(in))
	for name, req := range in {
		c, err := semver.NewConstraint(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}

func (m *PackageManifest) validate() error {
	if _, ok := m.Conflicts[m.Name]; ok {
		return fmt.Errorf("%w: manifest '%s' conflicts with itself", errInvalidManifest, m.Name)
	}
	if _, ok := m.Replaces[m.Name]; ok {
		return fmt.Errorf("%w: manifest '%s' replaces itself", errInvalidManifest, m.Name)
	}

	for _, artifact := range m.Artifacts {
		seen := make(map[string]bool, len(artifact.GuiApps))
		for _, app := range artifact.GuiApps {
			if strings.TrimSpace(app.AppID) == "" {
				return fmt.Errorf("%w: gui app id must not be empty for target '%s'", errInvalidManifest, artifact.Target)
			}
			if seen[app.AppID] {
				return fmt.Errorf("%w: duplicate gui app declaration '%s' for target '%s'", errInvalidManifest, app.AppID, artifact.Target)
			}
			seen[app.AppID] = true

			for _, proto := range app.Protocols {
				if err := validateProtocolScheme(proto.Scheme); err != nil {
					return fmt.Errorf("%w: invalid gui protocol scheme '%s' for app '%s' target '%s': %v", errInvalidManifest, proto.Scheme, app.AppID, artifact.Target, err)
				}
			}
		}
	}

	return nil
}

// validateProtocolScheme enforces the URI-scheme grammar of §3:
// [A-Za-z][A-Za-z0-9+\-.]*.
func validateProtocolScheme(scheme string) error {
	trimmed := strings.TrimSpace(scheme)
	if trimmed == "" {
		return fmt.Errorf("protocol scheme must not be empty")
	}

	runes := []rune(trimmed)
	if !isASCIIAlpha(runes[0]) {
		return fmt.Errorf("protocol scheme must start with an ASCII letter: %s", scheme)
	}
	for _, ch := range runes[1:] {
		if !(isASCIIAlphaNumeric(ch) || ch == '+' || ch == '-' || ch == '.') {
			return fmt.Errorf("protocol scheme contains invalid character(s): %s", scheme)
		}
	}
	return nil
}

func isASCIIAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIAlphaNumeric(r rune) bool {
	return isASCIIAlpha(r) || (r >= '0' && r <= '9')
}
