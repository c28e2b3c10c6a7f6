// Package regsource manages the multi-source registry configuration of
// §4.5: sources.toml (which registries to sync, in what priority order),
// the per-source cache under state/cache/<name>/, and the sync pipeline
// that brings a source's cache up to date with its upstream location.
package regsource

// SourceKind names the transport a registry source is fetched over.
type SourceKind string

const (
	SourceGit        SourceKind = "git"
	SourceFilesystem SourceKind = "filesystem"
)

// SourceRecord is one configured registry source.
type SourceRecord struct {
	Name              string     `toml:"name"`
	Kind              SourceKind `toml:"kind"`
	Location          string     `toml:"location"`
	FingerprintSHA256 string     `toml:"fingerprint_sha256"`
	Enabled           bool       `toml:"enabled"`
	Priority          uint32     `toml:"priority"`
}

// UpdateStatus reports the outcome of syncing one source.
type UpdateStatus string

const (
	StatusUpdated  UpdateStatus = "updated"
	StatusUpToDate UpdateStatus = "up-to-date"
	StatusFailed   UpdateStatus = "failed"
)

// UpdateResult is one source's sync outcome.
type UpdateResult struct {
	Name       string
	Status     UpdateStatus
	SnapshotID string
	Error      string
}

// SnapshotStatus classifies why a source's on-disk snapshot can't be
// trusted, when it can't.
type SnapshotStatus string

const (
	SnapshotUnreadable SnapshotStatus = "unreadable"
	SnapshotInvalid    SnapshotStatus = "invalid"
)

// SnapshotState is the readiness of one source's cached snapshot.
type SnapshotState struct {
	// Ready is true when SnapshotID names a usable snapshot.
	Ready      bool
	SnapshotID string
	// Status and ReasonCode are set only when the snapshot exists but
	// cannot be trusted (Ready is false and a snapshot.json was found).
	Status     SnapshotStatus
	ReasonCode string
	// Exists distinguishes "no snapshot.json at all" from "one exists but
	// failed to parse or wasn't ready".
	Exists bool
}

// SourceWithSnapshotState pairs a configured source with its current
// cache snapshot state, for `registry list`.
type SourceWithSnapshotState struct {
	Source   SourceRecord
	Snapshot SnapshotState
}
