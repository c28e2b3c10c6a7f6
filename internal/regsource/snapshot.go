package regsource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snapshotFile is the on-disk shape of <cacheRoot>/snapshot.json.
type snapshotFile struct {
	Version       int    `json:"version"`
	Source        string `json:"source"`
	SnapshotID    string `json:"snapshot_id"`
	UpdatedAtUnix int64  `json:"updated_at_unix"`
	ManifestCount uint64 `json:"manifest_count"`
	Status        string `json:"status"`
}

func writeSnapshotFile(cacheRoot, sourceName, snapshotID string, manifestCount uint64) error {
	snapshotPath := filepath.Join(cacheRoot, "snapshot.json")
	snapshot := snapshotFile{
		Version:       1,
		Source:        sourceName,
		SnapshotID:    snapshotID,
		UpdatedAtUnix: time.Now().Unix(),
		ManifestCount: manifestCount,
		Status:        "ready",
	}
	content, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("source-sync-failed: source '%s' failed serializing snapshot %s: %w", sourceName, snapshotPath, err)
	}
	if err := os.WriteFile(snapshotPath, content, 0o644); err != nil {
		return fmt.Errorf("source-sync-failed: source '%s' failed writing snapshot %s: %w", sourceName, snapshotPath, err)
	}
	return nil
}

func readSnapshotID(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var parsed snapshotFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false
	}
	return parsed.SnapshotID, true
}

func readSnapshotState(cacheRoot string) SnapshotState {
	snapshotPath := filepath.Join(cacheRoot, "snapshot.json")
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return SnapshotState{}
		}
		return SnapshotState{Exists: true, Status: SnapshotUnreadable, ReasonCode: "snapshot-unreadable"}
	}

	var parsed snapshotFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return SnapshotState{Exists: true, Status: SnapshotUnreadable, ReasonCode: "snapshot-unreadable"}
	}

	if parsed.Status == "ready" {
		return SnapshotState{Exists: true, Ready: true, SnapshotID: parsed.SnapshotID}
	}
	return SnapshotState{Exists: true, Status: SnapshotInvalid, ReasonCode: "snapshot-invalid"}
}

// SourceHasReadySnapshot reports whether a ready snapshot.json exists,
// distinguishing "no snapshot at all" (false, nil) from a parse failure
// (false, err).
func SourceHasReadySnapshot(cacheRoot string) (bool, error) {
	snapshotPath := filepath.Join(cacheRoot, "snapshot.json")
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed reading source snapshot metadata %s: %w", snapshotPath, err)
	}

	var parsed snapshotFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return false, fmt.Errorf("failed parsing source snapshot metadata %s: %w", snapshotPath, err)
	}
	return parsed.Status == "ready", nil
}
