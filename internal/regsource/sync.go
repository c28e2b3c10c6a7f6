package regsource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crosspack/crosspack/internal/gitsync"
	"github.com/crosspack/crosspack/internal/regindex"
	"github.com/crosspack/crosspack/internal/sig"
)

func updateSource(store *Store, source SourceRecord) (UpdateStatus, string, error) {
	switch source.Kind {
	case SourceFilesystem:
		return updateFilesystemSource(store, source)
	case SourceGit:
		return updateGitSource(store, source)
	default:
		return "", "", fmt.Errorf("unknown source kind %q for source '%s'", source.Kind, source.Name)
	}
}

func updateFilesystemSource(store *Store, source SourceRecord) (UpdateStatus, string, error) {
	stagedRoot := filepath.Join(store.StateRoot, fmt.Sprintf("tmp-%s-%s", source.Name, uniqueSuffix()))

	if err := copySourceToTemp(source.Location, stagedRoot, source.Name); err != nil {
		os.RemoveAll(stagedRoot)
		return "", "", err
	}

	snapshotID, err := computeFilesystemSnapshotID(stagedRoot)
	if err != nil {
		os.RemoveAll(stagedRoot)
		return "", "", err
	}

	return finalizeStagedSourceUpdate(store, source, stagedRoot, snapshotID)
}

func updateGitSource(store *Store, source SourceRecord) (UpdateStatus, string, error) {
	stagedRoot := filepath.Join(store.StateRoot, fmt.Sprintf("tmp-%s-%s", source.Name, uniqueSuffix()))
	destination := store.CacheRoot(source.Name)

	var prepErr error
	if _, statErr := os.Stat(destination); statErr == nil {
		if err := copySourceToTemp(destination, stagedRoot, source.Name); err != nil {
			prepErr = err
		} else {
			prepErr = gitsync.FetchAndResetHard(stagedRoot, source.Location)
		}
	} else {
		prepErr = gitsync.Clone(source.Location, stagedRoot)
	}
	if prepErr != nil {
		os.RemoveAll(stagedRoot)
		return "", "", fmt.Errorf("source-sync-failed: source '%s': %w", source.Name, prepErr)
	}

	snapshotID, err := gitsync.HeadSnapshotID(stagedRoot)
	if err != nil {
		os.RemoveAll(stagedRoot)
		return "", "", fmt.Errorf("source-sync-failed: source '%s' failed resolving HEAD: %w", source.Name, err)
	}

	return finalizeStagedSourceUpdate(store, source, stagedRoot, snapshotID)
}

func finalizeStagedSourceUpdate(store *Store, source SourceRecord, stagedRoot, snapshotID string) (UpdateStatus, string, error) {
	manifestCount, existingSnapshotID, err := validateAndMeasureStagedSource(store, source, stagedRoot)
	if err != nil {
		os.RemoveAll(stagedRoot)
		return "", "", err
	}

	cacheRoot := filepath.Join(store.StateRoot, "cache")
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		os.RemoveAll(stagedRoot)
		return "", "", fmt.Errorf("source-sync-failed: source '%s' failed creating cache root %s: %w", source.Name, cacheRoot, err)
	}
	destination := filepath.Join(cacheRoot, source.Name)
	backup := filepath.Join(cacheRoot, fmt.Sprintf(".%s-backup-%s", source.Name, uniqueSuffix()))

	_, statErr := os.Stat(destination)
	hadExisting := statErr == nil

	if hadExisting {
		if err := os.Rename(destination, backup); err != nil {
			os.RemoveAll(stagedRoot)
			return "", "", fmt.Errorf("source-sync-failed: source '%s' failed backing up cache %s: %w", source.Name, destination, err)
		}
	}

	if err := os.Rename(stagedRoot, destination); err != nil {
		if restoreErr := restoreBackupIfPresent(hadExisting, backup, destination); restoreErr != nil {
			return "", "", combineReplaceRestoreErrors(source.Name, destination, backup, err, restoreErr)
		}
		return "", "", fmt.Errorf("source-sync-failed: source '%s' failed replacing cache %s: %w", source.Name, destination, err)
	}

	if err := writeSnapshotFile(destination, source.Name, snapshotID, manifestCount); err != nil {
		os.RemoveAll(destination)
		if restoreErr := restoreBackupIfPresent(hadExisting, backup, destination); restoreErr != nil {
			return "", "", combineReplaceRestoreErrors(source.Name, destination, backup, err, restoreErr)
		}
		return "", "", err
	}

	if hadExisting {
		os.RemoveAll(backup)
	}

	status := StatusUpdated
	if existingSnapshotID == snapshotID {
		status = StatusUpToDate
	}
	return status, snapshotID, nil
}

func restoreBackupIfPresent(hadExisting bool, backup, destination string) error {
	if !hadExisting {
		return nil
	}
	return os.Rename(backup, destination)
}

func combineReplaceRestoreErrors(sourceName, destination, backup string, replaceErr, restoreErr error) error {
	return fmt.Errorf("source-sync-failed: source '%s' failed replacing cache %s: %v; failed restoring backup %s: %v", sourceName, destination, replaceErr, backup, restoreErr)
}

// validateAndMeasureStagedSource checks the staged directory's layout and
// key fingerprint, verifies every manifest's signature, and reports how
// many manifests it holds plus the previously cached snapshot id (if any).
func validateAndMeasureStagedSource(store *Store, source SourceRecord, stagedRoot string) (manifestCount uint64, existingSnapshotID string, err error) {
	if err := validateStagedRegistryLayout(stagedRoot, source.Name); err != nil {
		return 0, "", err
	}

	registryPubPath := filepath.Join(stagedRoot, "registry.pub")
	registryPubRaw, err := os.ReadFile(registryPubPath)
	if err != nil {
		return 0, "", fmt.Errorf("source-sync-failed: source '%s' failed reading %s: %w", source.Name, registryPubPath, err)
	}
	actualFingerprint := sig.SHA256Hex(registryPubRaw)
	if !equalFoldHex(actualFingerprint, source.FingerprintSHA256) {
		return 0, "", fmt.Errorf("source-key-fingerprint-mismatch: source '%s' expected %s, got %s", source.Name, source.FingerprintSHA256, actualFingerprint)
	}

	if err := verifyMetadataSignaturePolicy(stagedRoot, source.Name); err != nil {
		return 0, "", err
	}

	manifestCount, err = countManifestFiles(filepath.Join(stagedRoot, "index"))
	if err != nil {
		return 0, "", err
	}

	existing, _ := readSnapshotID(filepath.Join(store.CacheRoot(source.Name), "snapshot.json"))
	return manifestCount, existing, nil
}

// verifyMetadataSignaturePolicy walks every package directory in the
// staged index and loads its versions through regindex, which refuses to
// return manifests whose Ed25519 signature doesn't check out.
func verifyMetadataSignaturePolicy(stagedRoot, sourceName string) error {
	indexRoot := filepath.Join(stagedRoot, "index")
	entries, err := os.ReadDir(indexRoot)
	if err != nil {
		return fmt.Errorf("source-metadata-invalid: source '%s' failed reading index %s: %w", sourceName, indexRoot, err)
	}

	idx := regindex.Open(stagedRoot)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := idx.PackageVersions(entry.Name()); err != nil {
			return fmt.Errorf("source-metadata-invalid: source '%s' package '%s' failed signature validation: %w", sourceName, entry.Name(), err)
		}
	}
	return nil
}

func equalFoldHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
