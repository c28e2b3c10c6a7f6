package install

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crosspack/crosspack/internal/layout"
)

// UninstallStatus reports what Uninstall actually did.
type UninstallStatus string

const (
	StatusNotInstalled        UninstallStatus = "not_installed"
	StatusUninstalled         UninstallStatus = "uninstalled"
	StatusRepairedStaleState  UninstallStatus = "repaired_stale_state"
	StatusBlockedByDependents UninstallStatus = "blocked_by_dependents"
)

// UninstallOptions lets a caller override the dependency graph used for the
// reverse-dependency check (e.g. to simulate removing several packages at
// once) and exclude specific root packages from blocking consideration.
type UninstallOptions struct {
	DependencyOverrides map[string][]string
	IgnoredRoots        map[string]bool
}

// UninstallResult is what Uninstall did to name and everything pruned along
// with it.
type UninstallResult struct {
	Name               string
	Status             UninstallStatus
	PrunedDependencies []string
	BlockingRoots      []string
}

// Uninstall removes name per §4.9's Uninstall algorithm: block if another
// remaining root still depends on it; otherwise remove it and every
// dependency package that becomes unreachable as a result, reversing every
// exposure and deleting each removed package's receipt and install tree.
func Uninstall(l layout.PrefixLayout, name string, opts UninstallOptions) (*UninstallResult, error) {
	receipts, err := ReadReceipts(l)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Receipt, len(receipts))
	for _, r := range receipts {
		byName[r.Name] = r
	}

	if _, ok := byName[name]; !ok {
		return &UninstallResult{Name: name, Status: StatusNotInstalled}, nil
	}

	depMap := dependencyMap(receipts)
	applyDependencyOverrides(depMap, opts.DependencyOverrides)

	roots := make([]string, 0)
	for _, r := range receipts {
		if r.InstallReason == ReasonRoot && r.Name != name && !opts.IgnoredRoots[r.Name] {
			roots = append(roots, r.Name)
		}
	}

	var blockingRoots []string
	for _, root := range roots {
		if packageReachable(root, name, depMap) {
			blockingRoots = append(blockingRoots, root)
		}
	}
	if len(blockingRoots) > 0 {
		sort.Strings(blockingRoots)
		return &UninstallResult{Name: name, Status: StatusBlockedByDependents, BlockingRoots: blockingRoots}, nil
	}

	beforeReachable := reachablePackages(allRootNames(receipts), depMap)
	afterReachable := reachablePackages(roots, depMap)

	var pruned []string
	for pkg := range beforeReachable {
		if pkg == name {
			continue
		}
		if !afterReachable[pkg] {
			pruned = append(pruned, pkg)
		}
	}
	sort.Strings(pruned)

	toRemove := append([]string{name}, pruned...)

	repaired := false
	for _, pkgName := range toRemove {
		receipt, ok := byName[pkgName]
		if !ok {
			continue
		}
		status, err := removePackage(l, receipt)
		if err != nil {
			return nil, fmt.Errorf("failed removing package %q: %w", pkgName, err)
		}
		if status == StatusRepairedStaleState {
			repaired = true
		}
	}

	if err := garbageCollectCache(l, byName, toRemove); err != nil {
		return nil, err
	}

	status := StatusUninstalled
	if repaired {
		status = StatusRepairedStaleState
	}
	return &UninstallResult{Name: name, Status: status, PrunedDependencies: pruned}, nil
}

// removePackage reverses every mutation install made for one receipt:
// native uninstall actions (deferred — see DESIGN.md), exposed binaries,
// completions, and GUI assets, the package install tree, and the receipt
// itself.
func removePackage(l layout.PrefixLayout, receipt Receipt) (UninstallStatus, error) {
	status := StatusUninstalled

	if receipt.InstallMode == ModeNative {
		if err := os.Remove(l.GuiNativeStatePath(receipt.Name)); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed clearing native uninstall sidecar: %w", err)
		}
	}

	installRoot := l.PackageDir(receipt.Name, receipt.Version)
	if _, err := os.Stat(installRoot); os.IsNotExist(err) {
		status = StatusRepairedStaleState
	}
	if err := os.RemoveAll(installRoot); err != nil {
		return "", fmt.Errorf("failed removing install tree %s: %w", installRoot, err)
	}

	for _, bin := range receipt.ExposedBins {
		if err := RemoveExposedBinary(l, bin); err != nil {
			return "", err
		}
	}
	for _, completion := range receipt.ExposedCompletions {
		if err := RemoveExposedCompletion(l, completion); err != nil {
			return "", err
		}
	}

	guiAssets, err := ReadGuiState(l, receipt.Name)
	if err != nil {
		return "", err
	}
	for _, asset := range guiAssets {
		if err := RemoveExposedGuiAsset(l, asset); err != nil {
			return "", err
		}
	}
	if len(guiAssets) > 0 {
		if err := RemoveGuiState(l, receipt.Name); err != nil {
			return "", err
		}
	}

	if err := RemoveReceipt(l, receipt.Name); err != nil {
		return "", err
	}

	return status, nil
}

// garbageCollectCache removes cache artifact files no longer referenced by
// any receipt that remains after removing toRemove's packages, per §4.9
// step 5: constrained to absolute, `..`-free paths under cache/artifacts/.
func garbageCollectCache(l layout.PrefixLayout, byName map[string]Receipt, removed []string) error {
	removedSet := make(map[string]bool, len(removed))
	for _, name := range removed {
		removedSet[name] = true
	}

	stillReferenced := make(map[string]bool)
	for name, receipt := range byName {
		if removedSet[name] {
			continue
		}
		if receipt.CachePath != "" {
			stillReferenced[receipt.CachePath] = true
		}
	}

	for _, name := range removed {
		receipt, ok := byName[name]
		if !ok || receipt.CachePath == "" || stillReferenced[receipt.CachePath] {
			continue
		}
		path, err := safeCachePrunePath(l, receipt.CachePath)
		if err != nil {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed pruning cache artifact %s: %w", path, err)
		}
		pruneEmptyDirsUpTo(filepath.Dir(path), l.ArtifactsCacheDir())
	}
	return nil
}

// safeCachePrunePath rejects any path that is not absolute, contains "..",
// or does not lie under the artifact cache root.
func safeCachePrunePath(l layout.PrefixLayout, path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("cache path must be absolute: %s", path)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", fmt.Errorf("cache path must not include '..': %s", path)
		}
	}
	root := filepath.Clean(l.ArtifactsCacheDir())
	cleaned := filepath.Clean(path)
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("cache path must lie under %s: %s", root, path)
	}
	return cleaned, nil
}

// dependencyMap builds name -> dependency names from every receipt's
// "<name>@<version>" dependency tokens.
func dependencyMap(receipts []Receipt) map[string][]string {
	deps := make(map[string][]string, len(receipts))
	for _, r := range receipts {
		var names []string
		for _, token := range r.Dependencies {
			if depName, ok := parseDependencyName(token); ok {
				names = append(names, depName)
			}
		}
		deps[r.Name] = names
	}
	return deps
}

// parseDependencyName extracts the package name from a "<name>@<version>"
// dependency token.
func parseDependencyName(token string) (string, bool) {
	name, _, ok := strings.Cut(token, "@")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// applyDependencyOverrides replaces or adds dependency edges from the
// caller's overrides, letting Uninstall simulate a batch removal's effect
// on the graph before mutating anything.
func applyDependencyOverrides(depMap map[string][]string, overrides map[string][]string) {
	for name, deps := range overrides {
		depMap[name] = deps
	}
}

// packageReachable reports whether target is reachable from root by
// following depMap edges.
func packageReachable(root, target string, depMap map[string][]string) bool {
	visited := map[string]bool{}
	var walk func(string) bool
	walk = func(current string) bool {
		if current == target {
			return true
		}
		if visited[current] {
			return false
		}
		visited[current] = true
		for _, dep := range depMap[current] {
			if walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(root)
}

// reachablePackages returns every package name reachable from roots,
// including the roots themselves.
func reachablePackages(roots []string, depMap map[string][]string) map[string]bool {
	reachable := make(map[string]bool)
	var walk func(string)
	walk = func(current string) {
		if reachable[current] {
			return
		}
		reachable[current] = true
		for _, dep := range depMap[current] {
			walk(dep)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return reachable
}

func allRootNames(receipts []Receipt) []string {
	var roots []string
	for _, r := range receipts {
		if r.InstallReason == ReasonRoot {
			roots = append(roots, r.Name)
		}
	}
	return roots
}
