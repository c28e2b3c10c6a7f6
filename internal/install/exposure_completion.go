package install

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/crosspack/crosspack/internal/layout"
	"github.com/crosspack/crosspack/internal/manifest"
)

// ProjectedCompletionPath computes the storage-relative path a completion
// script is copied to: packages/<shell>/<normalized-pkg>--<normalized-rel>,
// with every non-[A-Za-z0-9._-] character in the normalized components
// replaced by '_' and the empty case mapping to "_".
func ProjectedCompletionPath(packageName string, shell manifest.CompletionShell, completionRelPath string) (string, error) {
	if err := validateRelativeCompletionPath(completionRelPath); err != nil {
		return "", err
	}
	normalizedPackage := normalizeCompletionToken(packageName)
	normalizedPath := normalizeCompletionSourcePath(completionRelPath)
	return fmt.Sprintf("packages/%s/%s--%s", shell, normalizedPackage, normalizedPath), nil
}

// ExposedCompletionPath resolves a storage-relative completion path (as
// recorded in a receipt) to its absolute location under the prefix.
func ExposedCompletionPath(l layout.PrefixLayout, storageRelPath string) (string, error) {
	if err := validateRelativeCompletionPath(storageRelPath); err != nil {
		return "", err
	}
	return filepath.Join(l.CompletionsDir(), filepath.FromSlash(storageRelPath)), nil
}

// ExposeCompletion copies installRoot/completionRelPath to its projected
// location under share/completions/packages/, returning the storage-relative
// path to record in the receipt.
func ExposeCompletion(l layout.PrefixLayout, installRoot, packageName string, shell manifest.CompletionShell, completionRelPath string) (string, error) {
	if err := validateRelativeCompletionPath(completionRelPath); err != nil {
		return "", err
	}
	sourcePath := filepath.Join(installRoot, filepath.FromSlash(completionRelPath))
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("declared completion path '%s' was not found in install root: %s", completionRelPath, sourcePath)
	}
	if info.IsDir() {
		return "", fmt.Errorf("declared completion path '%s' must be a file: %s", completionRelPath, sourcePath)
	}

	storageRelPath, err := ProjectedCompletionPath(packageName, shell, completionRelPath)
	if err != nil {
		return "", err
	}
	destination, err := ExposedCompletionPath(l, storageRelPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", fmt.Errorf("failed to create completion dir: %w", err)
	}
	if err := copyCompletionFile(sourcePath, destination); err != nil {
		return "", fmt.Errorf("failed to expose completion file %s -> %s: %w", sourcePath, destination, err)
	}
	return storageRelPath, nil
}

// RemoveExposedCompletion removes an exposed completion file and prunes
// any now-empty package/shell directories left behind, bounded to the
// completions root.
func RemoveExposedCompletion(l layout.PrefixLayout, storageRelPath string) error {
	destination, err := ExposedCompletionPath(l, storageRelPath)
	if err != nil {
		return err
	}
	if err := os.Remove(destination); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove exposed completion file: %s: %w", destination, err)
	}
	pruneEmptyDirsUpTo(filepath.Dir(destination), l.CompletionsDir())
	return nil
}

func validateRelativeCompletionPath(relPath string) error {
	if filepath.IsAbs(relPath) {
		return fmt.Errorf("completion path must be relative: %s", relPath)
	}
	if relPath == "" {
		return fmt.Errorf("completion path must not be empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if part == ".." {
			return fmt.Errorf("completion path must not include '..': %s", relPath)
		}
	}
	return nil
}

func normalizeCompletionToken(value string) string {
	var b strings.Builder
	for _, ch := range value {
		if isTokenSafe(ch) {
			b.WriteRune(ch)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func normalizeCompletionSourcePath(relPath string) string {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		normalized = append(normalized, normalizeCompletionToken(part))
	}
	if len(normalized) == 0 {
		return "_"
	}
	return strings.Join(normalized, "--")
}

func isTokenSafe(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_' || ch == '.'
}

func copyCompletionFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if _, err := os.Lstat(dst); err == nil {
		_ = os.Remove(dst)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// pruneEmptyDirsUpTo removes dir and its ancestors while they are empty,
// stopping at (and never removing) root.
func pruneEmptyDirsUpTo(dir, root string) {
	root = filepath.Clean(root)
	current := filepath.Clean(dir)
	for current != root && strings.HasPrefix(current, root) {
		entries, err := os.ReadDir(current)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(current); err != nil {
			return
		}
		current = filepath.Dir(current)
	}
}
