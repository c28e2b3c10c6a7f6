package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/crosspack/crosspack/internal/install"
	"github.com/crosspack/crosspack/internal/layout"
	"github.com/crosspack/crosspack/internal/manifest"
	"github.com/crosspack/crosspack/internal/resolver"
)

// parseSpec splits a "<name>[@<requirement>]" argument, defaulting to "*"
// (any version) when no requirement is given.
func parseSpec(spec string) (name, requirement string) {
	name, requirement, ok := strings.Cut(spec, "@")
	if !ok || requirement == "" {
		return name, "*"
	}
	return name, requirement
}

func parseConstraint(requirement string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(requirement)
	if err != nil {
		return nil, fmt.Errorf("invalid version requirement %q: %w", requirement, err)
	}
	return c, nil
}

// loadedPins resolves every pin file under the prefix into constraints
// keyed by package name.
func loadedPins(l layout.PrefixLayout) (map[string]*semver.Constraints, error) {
	raw, err := install.ReadAllPins(l)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*semver.Constraints, len(raw))
	for name, req := range raw {
		c, err := parseConstraint(req)
		if err != nil {
			return nil, fmt.Errorf("pin for '%s': %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}

// makeLoadVersions returns a resolver.LoadVersions closure over idx. When a
// requested name has a --provider override, a miss against that name's own
// versions falls back to the override package's versions, letting a
// capability name be satisfied by a package that doesn't declare `provides`
// for it.
func makeLoadVersions(idx packageIndex, providers map[string]string) resolver.LoadVersions {
	return func(name string) ([]*manifest.PackageManifest, error) {
		versions, err := idx.PackageVersions(name)
		if err != nil {
			return nil, err
		}
		if len(versions) > 0 {
			return versions, nil
		}
		if provider, ok := providers[name]; ok {
			return idx.PackageVersions(provider)
		}
		return versions, nil
	}
}

// dependencyTokens renders "<name>@<version>" tokens for m's declared
// dependencies as resolved in graph, for recording on an install receipt.
func dependencyTokens(m *manifest.PackageManifest, resolved map[string]*manifest.PackageManifest) []string {
	var tokens []string
	for depName := range m.Dependencies {
		dep, ok := resolved[depName]
		if !ok {
			continue
		}
		tokens = append(tokens, fmt.Sprintf("%s@%s", dep.Name, dep.Version))
	}
	return tokens
}

// confirmEscalation gates a destructive step on the --escalation policy:
// "none" and "auto" proceed without asking, "prompt" asks on stdin.
func confirmEscalation(escalation, message string) (bool, error) {
	switch escalation {
	case "auto", "none", "":
		return true, nil
	case "prompt":
		fmt.Printf("%s [y/N] ", message)
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(strings.ToLower(line))
		return line == "y" || line == "yes", nil
	default:
		return false, fmt.Errorf("invalid --escalation value %q: must be one of prompt, auto, none", escalation)
	}
}

func validEscalation(escalation string) error {
	switch escalation {
	case "", "prompt", "auto", "none":
		return nil
	default:
		return fmt.Errorf("invalid --escalation value %q: must be one of prompt, auto, none", escalation)
	}
}
