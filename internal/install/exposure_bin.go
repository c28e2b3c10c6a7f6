package install

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/crosspack/crosspack/internal/layout"
)

// BinPath returns the prefix bin/ entry for a binary name, adding the
// ".cmd" suffix on Windows where symlinks to executables aren't used.
func BinPath(l layout.PrefixLayout, binaryName string) string {
	fileName := binaryName
	if runtime.GOOS == "windows" {
		fileName += ".cmd"
	}
	return filepath.Join(l.BinDir(), fileName)
}

// ExposeBinary creates bin/<name> pointing at installRoot/binaryRelPath,
// falling back to the macOS ".app/Contents/MacOS/<rel>" stripping rule
// when the literal path doesn't exist.
func ExposeBinary(l layout.PrefixLayout, installRoot, binaryName, binaryRelPath string) error {
	sourcePath, err := resolveBinarySourcePath(installRoot, binaryRelPath)
	if err != nil {
		return err
	}

	destination := BinPath(l, binaryName)
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("failed to create bin dir: %w", err)
	}
	if _, err := os.Lstat(destination); err == nil {
		if err := os.Remove(destination); err != nil {
			return fmt.Errorf("failed to replace existing binary entry: %s: %w", destination, err)
		}
	}

	return createBinaryEntry(sourcePath, destination)
}

// RemoveExposedBinary removes bin/<name>, tolerating absence.
func RemoveExposedBinary(l layout.PrefixLayout, binaryName string) error {
	destination := BinPath(l, binaryName)
	if err := os.Remove(destination); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove exposed binary: %s: %w", destination, err)
	}
	return nil
}

// ValidateRelativeBinaryPath enforces the relative-path invariant shared by
// binary, completion, and GUI exec paths: non-empty, relative, no "..".
func ValidateRelativeBinaryPath(relPath string) error {
	if filepath.IsAbs(relPath) {
		return fmt.Errorf("binary path must be relative: %s", relPath)
	}
	if relPath == "" {
		return fmt.Errorf("binary path must not be empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if part == ".." {
			return fmt.Errorf("binary path must not include '..': %s", relPath)
		}
	}
	return nil
}

func resolveBinarySourcePath(installRoot, binaryRelPath string) (string, error) {
	if err := ValidateRelativeBinaryPath(binaryRelPath); err != nil {
		return "", err
	}
	sourcePath := filepath.Join(installRoot, filepath.FromSlash(binaryRelPath))
	if _, err := os.Stat(sourcePath); err == nil {
		return sourcePath, nil
	}

	if stripped, ok := strippedMacOSBundleExecRelPath(binaryRelPath); ok {
		strippedSourcePath := filepath.Join(installRoot, filepath.FromSlash(stripped))
		if _, err := os.Stat(strippedSourcePath); err == nil {
			return strippedSourcePath, nil
		}
	}

	return "", fmt.Errorf("declared binary path '%s' was not found in install root: %s", binaryRelPath, sourcePath)
}

// strippedMacOSBundleExecRelPath rewrites "Foo.app/Contents/MacOS/foo" to
// "Contents/MacOS/foo" when the first component looks like an app bundle,
// since artifacts sometimes name the executable inside a nested bundle
// whose outer directory wasn't literally extracted under that name.
func strippedMacOSBundleExecRelPath(relPath string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) < 4 {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(parts[0]), ".app") {
		return "", false
	}
	if parts[1] != "Contents" || parts[2] != "MacOS" {
		return "", false
	}
	return strings.Join(parts[1:], "/"), true
}

func createBinaryEntry(sourcePath, destination string) error {
	if runtime.GOOS == "windows" {
		shim := fmt.Sprintf("@echo off\r\n\"%s\" %%*\r\n", sourcePath)
		if err := os.WriteFile(destination, []byte(shim), 0o755); err != nil {
			return fmt.Errorf("failed to write shim: %s: %w", destination, err)
		}
		return nil
	}

	if err := os.Symlink(sourcePath, destination); err != nil {
		return fmt.Errorf("failed to create symlink %s -> %s: %w", destination, sourcePath, err)
	}
	return nil
}
