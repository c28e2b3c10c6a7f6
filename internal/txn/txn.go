// Package txn implements the journaled transaction engine: a single active
// marker file guards concurrent installer runs, a per-transaction metadata
// file tracks status, and an append-only journal records each step so a
// crashed transaction can be inspected or rolled back.
package txn

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"github.com/crosspack/crosspack/internal/crosserr"
	"github.com/crosspack/crosspack/internal/layout"
)

// MetadataVersion is the current on-disk TransactionMetadata schema version.
const MetadataVersion = 1

// Status values for Metadata.Status.
const (
	StatusStarted   = "started"
	StatusCommitted = "committed"
	StatusAborted   = "aborted"
)

// Journal entry states.
const (
	StepStarted   = "started"
	StepStaged    = "staged"
	StepCommitted = "committed"
	StepFailed    = "failed"
)

// Metadata is the persisted state of one transaction.
type Metadata struct {
	Version       int    `json:"version"`
	TxID          string `json:"txid"`
	Operation     string `json:"operation"`
	Status        string `json:"status"`
	StartedAtUnix uint64 `json:"started_at_unix"`
	SnapshotID    string `json:"snapshot_id,omitempty"`
}

// JournalEntry is one append-only step record within a transaction.
type JournalEntry struct {
	Seq   uint64 `json:"seq"`
	Step  string `json:"step"`
	State string `json:"state"`
	Path  string `json:"path,omitempty"`
}

// SetActiveTransaction claims the single active-transaction marker for
// txid, failing if another transaction is already active.
func SetActiveTransaction(l layout.PrefixLayout, txid string) (string, error) {
	path := l.TransactionActivePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			existing, _ := ReadActiveTransaction(l)
			detail := ""
			if existing != "" {
				detail = fmt.Sprintf(" (txid=%s)", existing)
			}
			return "", fmt.Errorf("%w%s", crosserr.ErrActiveTransactionExists, detail)
		}
		return "", fmt.Errorf("failed to claim active transaction file: %s: %w", path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(txid + "\n"); err != nil {
		return "", fmt.Errorf("failed to write active transaction file: %s: %w", path, err)
	}
	return path, nil
}

// ReadActiveTransaction returns the currently active txid, or "" if none.
func ReadActiveTransaction(l layout.PrefixLayout) (string, error) {
	raw, err := os.ReadFile(l.TransactionActivePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active transaction file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// ClearActiveTransaction releases the active-transaction marker.
func ClearActiveTransaction(l layout.PrefixLayout) error {
	path := l.TransactionActivePath()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear active transaction file: %w", err)
	}
	return nil
}

// WriteMetadata persists metadata and ensures the transaction's staging
// directory exists.
func WriteMetadata(l layout.PrefixLayout, metadata Metadata) (string, error) {
	path := l.TransactionMetadataPath(metadata.TxID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.MkdirAll(l.TransactionStagingPath(metadata.TxID), 0o755); err != nil {
		return "", fmt.Errorf("failed to create transaction staging dir: %w", err)
	}

	encoded, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction metadata: %w", err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write transaction metadata file: %s: %w", path, err)
	}
	return path, nil
}

// ReadMetadata reads a transaction's metadata file, returning (nil, nil)
// if it does not exist.
func ReadMetadata(l layout.PrefixLayout, txid string) (*Metadata, error) {
	path := l.TransactionMetadataPath(txid)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transaction metadata file: %s: %w", path, err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("failed parsing transaction metadata file: %s: %w", path, err)
	}
	return &metadata, nil
}

// UpdateStatus loads a transaction's metadata, updates its status, and
// writes it back.
func UpdateStatus(l layout.PrefixLayout, txid, status string) error {
	metadata, err := ReadMetadata(l, txid)
	if err != nil {
		return err
	}
	if metadata == nil {
		return fmt.Errorf("transaction metadata not found for '%s'", txid)
	}
	metadata.Status = status
	_, err = WriteMetadata(l, *metadata)
	return err
}

// AppendJournalEntry appends one journal line for txid.
func AppendJournalEntry(l layout.PrefixLayout, txid string, entry JournalEntry) (string, error) {
	path := l.TransactionJournalPath(txid)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open transaction journal: %s: %w", path, err)
	}
	defer file.Close()

	encoded, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction journal entry: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return "", fmt.Errorf("failed to append transaction journal: %s: %w", path, err)
	}
	return path, nil
}

// ReadJournal reads every entry appended to txid's journal, in order.
func ReadJournal(l layout.PrefixLayout, txid string) ([]JournalEntry, error) {
	path := l.TransactionJournalPath(txid)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transaction journal: %s: %w", path, err)
	}

	var entries []JournalEntry
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry JournalEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("failed parsing transaction journal line: %s: %w", path, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CurrentUnixTimestamp returns the current wall-clock time as Unix seconds.
func CurrentUnixTimestamp() uint64 {
	return uint64(time.Now().Unix())
}

// NewTxID generates a fresh identifier unique enough for a single host,
// used as a transaction's txid.
func NewTxID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate transaction id: %w", err)
	}
	return id.String(), nil
}

// Transaction is a live, in-progress transaction: the active marker is
// held, metadata is on disk, and journal entries append with a
// monotonically increasing seq starting at 1.
type Transaction struct {
	layout layout.PrefixLayout
	txid   string
	seq    uint64
}

// Begin claims the active-transaction marker, writes initial metadata with
// status "started", and creates the transaction's staging directory.
// snapshotID may be empty when the operation has none.
func Begin(l layout.PrefixLayout, operation, snapshotID string) (*Transaction, error) {
	txid, err := NewTxID()
	if err != nil {
		return nil, err
	}
	if _, err := SetActiveTransaction(l, txid); err != nil {
		return nil, err
	}

	metadata := Metadata{
		Version:       MetadataVersion,
		TxID:          txid,
		Operation:     operation,
		Status:        StatusStarted,
		StartedAtUnix: CurrentUnixTimestamp(),
		SnapshotID:    snapshotID,
	}
	if _, err := WriteMetadata(l, metadata); err != nil {
		_ = ClearActiveTransaction(l)
		return nil, err
	}

	return &Transaction{layout: l, txid: txid}, nil
}

// TxID returns the transaction's identifier.
func (t *Transaction) TxID() string { return t.txid }

// StagingDir returns this transaction's scratch directory.
func (t *Transaction) StagingDir() string {
	return t.layout.TransactionStagingPath(t.txid)
}

// Append records one journal step, assigning it the next seq.
func (t *Transaction) Append(step, state, path string) error {
	t.seq++
	_, err := AppendJournalEntry(t.layout, t.txid, JournalEntry{
		Seq:   t.seq,
		Step:  step,
		State: state,
		Path:  path,
	})
	return err
}

// Commit marks the transaction committed and releases the active marker.
func (t *Transaction) Commit() error {
	if err := UpdateStatus(t.layout, t.txid, StatusCommitted); err != nil {
		return err
	}
	return ClearActiveTransaction(t.layout)
}

// Abort marks the transaction aborted and releases the active marker,
// without touching any filesystem mutations already journaled — callers
// needing to undo those mutations should do so (via Rollback-style package
// state restoration) before calling Abort.
func (t *Transaction) Abort() error {
	if err := UpdateStatus(t.layout, t.txid, StatusAborted); err != nil {
		return err
	}
	return ClearActiveTransaction(t.layout)
}

// Resume reattaches to an already-active transaction by txid, for
// recovery flows (repair, rollback) that continue appending to its
// journal. The seq counter is primed from the highest seq already present.
func Resume(l layout.PrefixLayout, txid string) (*Transaction, error) {
	entries, err := ReadJournal(l, txid)
	if err != nil {
		return nil, err
	}
	var lastSeq uint64
	for _, entry := range entries {
		if entry.Seq > lastSeq {
			lastSeq = entry.Seq
		}
	}
	return &Transaction{layout: l, txid: txid, seq: lastSeq}, nil
}
