package install

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crosspack/crosspack/internal/layout"
)

// WritePin persists a version requirement string that pins name against
// resolver upgrades.
func WritePin(l layout.PrefixLayout, name, requirement string) (string, error) {
	path := l.PinPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create pin dir: %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(requirement), 0o644); err != nil {
		return "", fmt.Errorf("failed to write pin: %s: %w", path, err)
	}
	return path, nil
}

// ReadPin returns name's pinned requirement, or ("", false, nil) if unset.
func ReadPin(l layout.PrefixLayout, name string) (string, bool, error) {
	path := l.PinPath(name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read pin: %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "", false, nil
	}
	return trimmed, true, nil
}

// ReadAllPins returns every pinned requirement, keyed by package name.
func ReadAllPins(l layout.PrefixLayout) (map[string]string, error) {
	dir := l.PinsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read pin state directory: %s: %w", dir, err)
	}

	pins := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pin" {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".pin")
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read pin: %s: %w", entry.Name(), err)
		}
		trimmed := strings.TrimSpace(string(raw))
		if trimmed == "" {
			continue
		}
		pins[stem] = trimmed
	}
	return pins, nil
}

// RemovePin removes name's pin, reporting whether one existed.
func RemovePin(l layout.PrefixLayout, name string) (bool, error) {
	path := l.PinPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat pin: %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("failed to remove pin: %s: %w", path, err)
	}
	return true, nil
}

// sortedPinNames is a small helper for deterministic iteration in callers
// that print pins.
func sortedPinNames(pins map[string]string) []string {
	names := make([]string, 0, len(pins))
	for name := range pins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
