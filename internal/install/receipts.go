// Package install implements the transactional installer and uninstaller
// of §4.9: staging, verifying, and extracting artifacts into a package
// tree, exposing binaries/completions/GUI launchers into the prefix,
// writing install receipts, and reversing all of it on uninstall.
package install

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/crosspack/crosspack/internal/layout"
)

// InstallMode distinguishes packages crosspack manages directly from ones
// whose install was delegated to a platform-native installer sidecar.
type InstallMode string

const (
	ModeManaged InstallMode = "managed"
	ModeNative  InstallMode = "native"
)

func parseInstallMode(s string) InstallMode {
	switch s {
	case string(ModeNative):
		return ModeNative
	default:
		return ModeManaged
	}
}

// InstallReason distinguishes a package the user asked for directly from
// one pulled in only to satisfy a dependency.
type InstallReason string

const (
	ReasonRoot       InstallReason = "root"
	ReasonDependency InstallReason = "dependency"
)

func parseInstallReason(s string) InstallReason {
	switch s {
	case string(ReasonDependency):
		return ReasonDependency
	default:
		return ReasonRoot
	}
}

// Receipt is the persisted record of one installed package: what was
// installed, where its artifact came from, and what it exposed into the
// prefix, so uninstall can reverse every mutation install made.
type Receipt struct {
	Name               string
	Version            string
	Dependencies       []string
	Target             string
	ArtifactURL        string
	ArtifactSHA256     string
	CachePath          string
	ExposedBins        []string
	ExposedCompletions []string
	SnapshotID         string
	InstallMode        InstallMode
	InstallReason      InstallReason
	InstallStatus      string
	InstalledAtUnix    uint64
}

// WriteReceipt persists receipt as key=value lines, one per field,
// repeated lines for dependency/exposed_bin/exposed_completion.
func WriteReceipt(l layout.PrefixLayout, receipt Receipt) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "name=%s\n", receipt.Name)
	fmt.Fprintf(&b, "version=%s\n", receipt.Version)
	for _, dep := range receipt.Dependencies {
		fmt.Fprintf(&b, "dependency=%s\n", dep)
	}
	if receipt.Target != "" {
		fmt.Fprintf(&b, "target=%s\n", receipt.Target)
	}
	if receipt.ArtifactURL != "" {
		fmt.Fprintf(&b, "artifact_url=%s\n", receipt.ArtifactURL)
	}
	if receipt.ArtifactSHA256 != "" {
		fmt.Fprintf(&b, "artifact_sha256=%s\n", receipt.ArtifactSHA256)
	}
	if receipt.CachePath != "" {
		fmt.Fprintf(&b, "cache_path=%s\n", receipt.CachePath)
	}
	for _, bin := range receipt.ExposedBins {
		fmt.Fprintf(&b, "exposed_bin=%s\n", bin)
	}
	for _, completion := range receipt.ExposedCompletions {
		fmt.Fprintf(&b, "exposed_completion=%s\n", completion)
	}
	if receipt.SnapshotID != "" {
		fmt.Fprintf(&b, "snapshot_id=%s\n", receipt.SnapshotID)
	}
	fmt.Fprintf(&b, "install_mode=%s\n", receipt.InstallMode)
	fmt.Fprintf(&b, "install_reason=%s\n", receipt.InstallReason)
	fmt.Fprintf(&b, "install_status=%s\n", receipt.InstallStatus)
	fmt.Fprintf(&b, "installed_at_unix=%d\n", receipt.InstalledAtUnix)

	path := l.ReceiptPath(receipt.Name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write install receipt: %s: %w", path, err)
	}
	return path, nil
}

// ReadReceipts loads every receipt under the prefix's installed-state
// directory, sorted by package name.
func ReadReceipts(l layout.PrefixLayout) ([]Receipt, error) {
	dir := l.InstalledStateDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read install state directory: %s: %w", dir, err)
	}

	var receipts []Receipt
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".receipt" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read install receipt: %s: %w", path, err)
		}
		receipt, err := parseReceipt(string(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse install receipt: %s: %w", path, err)
		}
		receipts = append(receipts, receipt)
	}

	sort.Slice(receipts, func(i, j int) bool { return receipts[i].Name < receipts[j].Name })
	return receipts, nil
}

// ReadReceipt loads one package's receipt, or (Receipt{}, false, nil) if
// it has none.
func ReadReceipt(l layout.PrefixLayout, name string) (Receipt, bool, error) {
	path := l.ReceiptPath(name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Receipt{}, false, nil
		}
		return Receipt{}, false, fmt.Errorf("failed to read install receipt: %s: %w", path, err)
	}
	receipt, err := parseReceipt(string(raw))
	if err != nil {
		return Receipt{}, false, fmt.Errorf("failed to parse install receipt: %s: %w", path, err)
	}
	return receipt, true, nil
}

// RemoveReceipt deletes a package's receipt file.
func RemoveReceipt(l layout.PrefixLayout, name string) error {
	path := l.ReceiptPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove install receipt: %s: %w", path, err)
	}
	return nil
}

func parseReceipt(raw string) (Receipt, error) {
	var receipt Receipt
	var haveName, haveVersion, haveInstalledAt bool
	receipt.InstallStatus = "installed"

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "name":
			receipt.Name = value
			haveName = true
		case "version":
			receipt.Version = value
			haveVersion = true
		case "dependency":
			receipt.Dependencies = append(receipt.Dependencies, value)
		case "target":
			receipt.Target = value
		case "artifact_url":
			receipt.ArtifactURL = value
		case "artifact_sha256":
			receipt.ArtifactSHA256 = value
		case "cache_path":
			receipt.CachePath = value
		case "exposed_bin":
			receipt.ExposedBins = append(receipt.ExposedBins, value)
		case "exposed_completion":
			receipt.ExposedCompletions = append(receipt.ExposedCompletions, value)
		case "snapshot_id":
			receipt.SnapshotID = value
		case "install_mode":
			receipt.InstallMode = parseInstallMode(value)
		case "install_reason":
			receipt.InstallReason = parseInstallReason(value)
		case "install_status":
			receipt.InstallStatus = value
		case "installed_at_unix":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return Receipt{}, fmt.Errorf("installed_at_unix must be a u64: %w", err)
			}
			receipt.InstalledAtUnix = n
			haveInstalledAt = true
		}
	}

	if !haveName {
		return Receipt{}, fmt.Errorf("missing name")
	}
	if !haveVersion {
		return Receipt{}, fmt.Errorf("missing version")
	}
	if !haveInstalledAt {
		return Receipt{}, fmt.Errorf("missing installed_at_unix")
	}
	if receipt.InstallMode == "" {
		receipt.InstallMode = ModeManaged
	}
	if receipt.InstallReason == "" {
		receipt.InstallReason = ReasonRoot
	}
	return receipt, nil
}
