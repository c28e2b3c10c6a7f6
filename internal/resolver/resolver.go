// Package resolver implements the backtracking dependency resolver of
// §4.6: given root requirements, pins, and a version-lookup callback, it
// searches for one self-consistent assignment of exactly one manifest per
// package name and orders the result so every dependency installs before
// its dependents.
package resolver

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/crosspack/crosspack/internal/crosserr"
	"github.com/crosspack/crosspack/internal/manifest"
)

// RootRequirement is one user-requested package and the version constraint
// it must satisfy.
type RootRequirement struct {
	Name       string
	Constraint *semver.Constraints
}

// ResolvedGraph is the output of a successful resolution: one manifest per
// selected package name, and a topological install order.
type ResolvedGraph struct {
	Manifests    map[string]*manifest.PackageManifest
	InstallOrder []string
}

// LoadVersions returns every known version of the named package (or
// capability provider), in any order. An empty, non-error result means the
// package is unknown to the registry.
type LoadVersions func(name string) ([]*manifest.PackageManifest, error)

// SelectHighestCompatible returns the highest version among candidates
// that satisfies requirement, or nil if none match.
func SelectHighestCompatible(candidates []*manifest.PackageManifest, requirement *semver.Constraints) *manifest.PackageManifest {
	var best *manifest.PackageManifest
	for _, m := range candidates {
		if !requirement.Check(m.Version) {
			continue
		}
		if best == nil || m.Version.GreaterThan(best.Version) {
			best = m
		}
	}
	return best
}

// ResolveDependencyGraph resolves roots against pins with no installed-state
// conflict checking.
func ResolveDependencyGraph(roots []RootRequirement, pins map[string]*semver.Constraints, loadVersions LoadVersions) (*ResolvedGraph, error) {
	return ResolveDependencyGraphWithInstalled(roots, pins, nil, loadVersions)
}

// ResolveDependencyGraphWithInstalled resolves roots against pins, rejecting
// any candidate graph whose members conflict with each other or with an
// already-installed package not itself part of the new selection.
func ResolveDependencyGraphWithInstalled(roots []RootRequirement, pins map[string]*semver.Constraints, installed map[string]*manifest.PackageManifest, loadVersions LoadVersions) (*ResolvedGraph, error) {
	constraints := map[string][]*semver.Constraints{}
	for _, root := range roots {
		constraints[root.Name] = append(constraints[root.Name], root.Constraint)
	}

	versionsCache := map[string][]*manifest.PackageManifest{}
	selected := map[string]*manifest.PackageManifest{}

	ok, err := search(constraints, pins, installed, selected, versionsCache, loadVersions)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, crosserr.ErrNoCompatibleGraph
	}

	order, err := topoOrder(selected)
	if err != nil {
		return nil, err
	}
	return &ResolvedGraph{Manifests: selected, InstallOrder: order}, nil
}

// search performs the backtracking search itself: pick the next
// constrained-but-unselected package name (in sorted order, for
// determinism), try its matching candidates from highest version down, and
// recurse. A candidate is abandoned and the next tried when it leaves the
// selection globally inconsistent or the recursive search beneath it fails.
func search(
	constraints map[string][]*semver.Constraints,
	pins map[string]*semver.Constraints,
	installed map[string]*manifest.PackageManifest,
	selected map[string]*manifest.PackageManifest,
	versionsCache map[string][]*manifest.PackageManifest,
	loadVersions LoadVersions,
) (bool, error) {
	next, found := nextUnselected(constraints, selected)
	if !found {
		return selectedSatisfiesConstraints(selected, constraints, pins, installed), nil
	}

	candidates, err := matchingCandidates(next, constraints, pins, versionsCache, loadVersions)
	if err != nil {
		return false, err
	}

	for _, candidate := range candidates {
		selected[next] = candidate

		type addedConstraint struct {
			name   string
			oldLen int
		}
		var added []addedConstraint
		depNames := sortedKeys(candidate.Dependencies)
		for _, depName := range depNames {
			depReq := candidate.Dependencies[depName]
			constraints[depName] = append(constraints[depName], depReq)
			added = append(added, addedConstraint{name: depName, oldLen: len(constraints[depName])})
		}

		consistent := selectedSatisfiesConstraints(selected, constraints, pins, installed)
		if consistent {
			ok, err := search(constraints, pins, installed, selected, versionsCache, loadVersions)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}

		for _, a := range added {
			list := constraints[a.name]
			newLen := a.oldLen - 1
			if newLen < 0 {
				newLen = 0
			}
			constraints[a.name] = list[:newLen]
		}
		for name, reqs := range constraints {
			if len(reqs) == 0 {
				delete(constraints, name)
			}
		}
		delete(selected, next)
	}

	return false, nil
}

// nextUnselected returns the lexicographically-smallest constrained
// package name not yet in selected, for deterministic search order.
func nextUnselected(constraints map[string][]*semver.Constraints, selected map[string]*manifest.PackageManifest) (string, bool) {
	names := sortedKeysConstraints(constraints)
	for _, name := range names {
		if _, ok := selected[name]; !ok {
			return name, true
		}
	}
	return "", false
}

func matchingCandidates(
	name string,
	constraints map[string][]*semver.Constraints,
	pins map[string]*semver.Constraints,
	versionsCache map[string][]*manifest.PackageManifest,
	loadVersions LoadVersions,
) ([]*manifest.PackageManifest, error) {
	versions, cached := versionsCache[name]
	if !cached {
		v, err := loadVersions(name)
		if err != nil {
			return nil, err
		}
		versions = v
		versionsCache[name] = versions
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("package '%s' was not found in the registry index", name)
	}

	packageReqs := constraints[name]
	pinReq, hasPin := pins[name]

	var matched []*manifest.PackageManifest
	for _, m := range versions {
		ok := true
		for _, req := range packageReqs {
			if !req.Check(m.Version) {
				ok = false
				break
			}
		}
		if ok && hasPin && !pinReq.Check(m.Version) {
			ok = false
		}
		if ok {
			matched = append(matched, m)
		}
	}

	hasDirectMatch := false
	for _, m := range matched {
		if m.Name == name {
			hasDirectMatch = true
			break
		}
	}

	var picked []*manifest.PackageManifest
	if hasDirectMatch {
		for _, m := range matched {
			if m.Name == name {
				picked = append(picked, m)
			}
		}
	} else {
		for _, m := range matched {
			for _, provided := range m.Provides {
				if provided == name {
					picked = append(picked, m)
					break
				}
			}
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		if !picked[i].Version.Equal(picked[j].Version) {
			return picked[i].Version.GreaterThan(picked[j].Version)
		}
		return picked[i].Name < picked[j].Name
	})

	if len(picked) == 0 {
		reqDesc := "*"
		if len(packageReqs) > 0 {
			reqDesc = joinConstraints(packageReqs)
		}
		if hasPin {
			return nil, fmt.Errorf("no matching version for '%s' with constraints [%s] and pin %s", name, reqDesc, pinReq.String())
		}
		return nil, fmt.Errorf("no matching version for '%s' with constraints [%s]", name, reqDesc)
	}

	return picked, nil
}

func selectedSatisfiesConstraints(
	selected map[string]*manifest.PackageManifest,
	constraints map[string][]*semver.Constraints,
	pins map[string]*semver.Constraints,
	installed map[string]*manifest.PackageManifest,
) bool {
	for name, m := range selected {
		if reqs, ok := constraints[name]; ok {
			for _, req := range reqs {
				if !req.Check(m.Version) {
					return false
				}
			}
		}
		if pin, ok := pins[name]; ok {
			if !pin.Check(m.Version) {
				return false
			}
		}
	}

	names := sortedKeys(selected)
	for i, leftName := range names {
		left := selected[leftName]
		for _, rightName := range names[i+1:] {
			right := selected[rightName]
			if manifestsConflict(left, right) {
				return false
			}
		}
	}

	for _, selectedManifest := range selected {
		for installedName, installedManifest := range installed {
			if _, ok := selected[installedName]; ok {
				continue
			}
			if manifestsConflict(selectedManifest, installedManifest) {
				return false
			}
		}
	}

	return true
}

func manifestsConflict(left, right *manifest.PackageManifest) bool {
	if req, ok := left.Conflicts[right.Name]; ok && req.Check(right.Version) {
		return true
	}
	if req, ok := right.Conflicts[left.Name]; ok && req.Check(left.Version) {
		return true
	}
	return false
}

// topoOrder produces a dependency-first install order via Kahn's algorithm,
// breaking ties lexicographically so the same selection always orders the
// same way.
func topoOrder(selected map[string]*manifest.PackageManifest) ([]string, error) {
	deps := map[string]map[string]bool{}
	reverse := map[string]map[string]bool{}
	inDegree := map[string]int{}

	for name := range selected {
		deps[name] = map[string]bool{}
		reverse[name] = map[string]bool{}
		inDegree[name] = 0
	}

	for name, m := range selected {
		for depName := range m.Dependencies {
			if _, ok := selected[depName]; !ok {
				continue
			}
			deps[name][depName] = true
			reverse[depName][name] = true
		}
	}

	for name, ds := range deps {
		inDegree[name] = len(ds)
	}

	ready := map[string]bool{}
	for name, degree := range inDegree {
		if degree == 0 {
			ready[name] = true
		}
	}

	var ordered []string
	for len(ready) > 0 {
		next := popFirst(ready)
		ordered = append(ordered, next)
		for child := range reverse[next] {
			if inDegree[child] > 0 {
				inDegree[child]--
			}
			if inDegree[child] == 0 {
				ready[child] = true
			}
		}
	}

	if len(ordered) != len(selected) {
		orderedSet := map[string]bool{}
		for _, n := range ordered {
			orderedSet[n] = true
		}
		var cycleNodes []string
		for name := range selected {
			if !orderedSet[name] {
				cycleNodes = append(cycleNodes, name)
			}
		}
		sort.Strings(cycleNodes)
		return nil, fmt.Errorf("%w: involving %v", crosserr.ErrDependencyCycle, cycleNodes)
	}

	return ordered, nil
}

// popFirst removes and returns the lexicographically-smallest key of a
// ready set, mirroring BTreeSet::pop_first.
func popFirst(ready map[string]bool) string {
	var min string
	first := true
	for name := range ready {
		if first || name < min {
			min = name
			first = false
		}
	}
	delete(ready, min)
	return min
}

func sortedKeys(m map[string]*manifest.PackageManifest) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysConstraints(m map[string][]*semver.Constraints) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinConstraints(reqs []*semver.Constraints) string {
	out := ""
	for i, r := range reqs {
		if i > 0 {
			out += " && "
		}
		out += r.String()
	}
	return out
}
