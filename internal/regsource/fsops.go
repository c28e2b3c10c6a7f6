package regsource

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/crosspack/crosspack/internal/sig"
)

func copySourceToTemp(sourcePath, stagedRoot, sourceName string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("source-sync-failed: source '%s' path does not exist: %s", sourceName, sourcePath)
	}
	if !info.IsDir() {
		return fmt.Errorf("source location is not a directory: %s", sourcePath)
	}

	if err := copyDirRecursive(sourcePath, stagedRoot); err != nil {
		return fmt.Errorf("source-sync-failed: source '%s' failed copying from %s: %w", sourceName, sourcePath, err)
	}
	return nil
}

func copyDirRecursive(sourceRoot, destinationRoot string) error {
	if _, err := os.Stat(destinationRoot); err == nil {
		if err := os.RemoveAll(destinationRoot); err != nil {
			return fmt.Errorf("failed clearing temp directory %s: %w", destinationRoot, err)
		}
	}
	if err := os.MkdirAll(destinationRoot, 0o755); err != nil {
		return fmt.Errorf("failed creating temp directory %s: %w", destinationRoot, err)
	}

	return filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == sourceRoot {
			return nil
		}
		rel, err := filepath.Rel(sourceRoot, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(destinationRoot, rel)
		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, dest)
	})
}

func copyFile(from, to string) error {
	data, err := os.ReadFile(from)
	if err != nil {
		return fmt.Errorf("failed copying file from %s to %s: %w", from, to, err)
	}
	if err := os.WriteFile(to, data, 0o644); err != nil {
		return fmt.Errorf("failed copying file from %s to %s: %w", from, to, err)
	}
	return nil
}

func validateStagedRegistryLayout(stagedRoot, sourceName string) error {
	registryPub := filepath.Join(stagedRoot, "registry.pub")
	if info, err := os.Stat(registryPub); err != nil || info.IsDir() {
		return fmt.Errorf("source-snapshot-missing: source '%s' missing registry.pub in %s", sourceName, stagedRoot)
	}

	indexRoot := filepath.Join(stagedRoot, "index")
	if info, err := os.Stat(indexRoot); err != nil || !info.IsDir() {
		return fmt.Errorf("source-snapshot-missing: source '%s' missing index/ in %s", sourceName, stagedRoot)
	}
	return nil
}

func countManifestFiles(indexRoot string) (uint64, error) {
	var count uint64
	err := filepath.WalkDir(indexRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".toml" {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed reading index directory %s: %w", indexRoot, err)
	}
	return count, nil
}

// computeFilesystemSnapshotID derives a content-addressed snapshot id for
// a filesystem-kind source: the sha256 of every staged file's relative
// path and content digest, sorted for determinism.
func computeFilesystemSnapshotID(stagedRoot string) (string, error) {
	relPaths, err := collectRelativeFilePaths(stagedRoot)
	if err != nil {
		return "", err
	}
	sort.Strings(relPaths)

	var snapshotInput []byte
	for _, rel := range relPaths {
		normalized := filepath.ToSlash(rel)
		data, err := os.ReadFile(filepath.Join(stagedRoot, rel))
		if err != nil {
			return "", fmt.Errorf("source-sync-failed: failed reading staged file for snapshot %s: %w", filepath.Join(stagedRoot, rel), err)
		}
		digest := sig.SHA256Hex(data)

		snapshotInput = append(snapshotInput, normalized...)
		snapshotInput = append(snapshotInput, 0)
		snapshotInput = append(snapshotInput, digest...)
		snapshotInput = append(snapshotInput, 0)
	}

	return "fs:" + sig.SHA256Hex(snapshotInput), nil
}

func collectRelativeFilePaths(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed deriving staged relative path %s from %s: %w", path, root, err)
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed reading staged directory %s: %w", root, err)
	}
	return paths, nil
}

func uniqueSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
