// Package layout is the pure path oracle over a user prefix: every other
// package that touches the filesystem asks layout.PrefixLayout where
// something lives rather than joining paths itself.
package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crosspack/crosspack/internal/manifest"
)

// PrefixLayout computes every on-disk path crosspack reads or writes,
// rooted at one user prefix directory. It holds no state beyond that root
// and performs no I/O except in EnsureBaseDirs.
type PrefixLayout struct {
	prefix string
}

// New returns a PrefixLayout rooted at prefix.
func New(prefix string) PrefixLayout {
	return PrefixLayout{prefix: prefix}
}

// Prefix returns the root directory this layout is rooted at.
func (l PrefixLayout) Prefix() string { return l.prefix }

func (l PrefixLayout) PkgsDir() string  { return filepath.Join(l.prefix, "pkgs") }
func (l PrefixLayout) BinDir() string   { return filepath.Join(l.prefix, "bin") }
func (l PrefixLayout) StateDir() string { return filepath.Join(l.prefix, "state") }
func (l PrefixLayout) CacheDir() string { return filepath.Join(l.prefix, "cache") }
func (l PrefixLayout) ShareDir() string { return filepath.Join(l.prefix, "share") }

func (l PrefixLayout) CompletionsDir() string {
	return filepath.Join(l.ShareDir(), "completions")
}

func (l PrefixLayout) PackageCompletionsDir() string {
	return filepath.Join(l.CompletionsDir(), "packages")
}

func (l PrefixLayout) PackageCompletionsShellDir(shell manifest.CompletionShell) string {
	return filepath.Join(l.PackageCompletionsDir(), string(shell))
}

func (l PrefixLayout) GuiDir() string            { return filepath.Join(l.ShareDir(), "gui") }
func (l PrefixLayout) GuiLaunchersDir() string    { return filepath.Join(l.GuiDir(), "launchers") }
func (l PrefixLayout) GuiHandlersDir() string     { return filepath.Join(l.GuiDir(), "handlers") }
func (l PrefixLayout) ArtifactsCacheDir() string  { return filepath.Join(l.CacheDir(), "artifacts") }
func (l PrefixLayout) TmpStateDir() string        { return filepath.Join(l.StateDir(), "tmp") }
func (l PrefixLayout) InstalledStateDir() string  { return filepath.Join(l.StateDir(), "installed") }
func (l PrefixLayout) PinsDir() string            { return filepath.Join(l.StateDir(), "pins") }

func (l PrefixLayout) PinPath(name string) string {
	return filepath.Join(l.PinsDir(), name+".pin")
}

func (l PrefixLayout) PackageDir(name, version string) string {
	return filepath.Join(l.PkgsDir(), name, version)
}

func (l PrefixLayout) ReceiptPath(name string) string {
	return filepath.Join(l.InstalledStateDir(), name+".receipt")
}

func (l PrefixLayout) GuiStatePath(name string) string {
	return filepath.Join(l.InstalledStateDir(), name+".gui")
}

func (l PrefixLayout) GuiNativeStatePath(name string) string {
	return filepath.Join(l.InstalledStateDir(), name+".gui-native")
}

func (l PrefixLayout) TransactionsDir() string {
	return filepath.Join(l.StateDir(), "transactions")
}

func (l PrefixLayout) TransactionsStagingDir() string {
	return filepath.Join(l.TransactionsDir(), "staging")
}

func (l PrefixLayout) TransactionActivePath() string {
	return filepath.Join(l.TransactionsDir(), "active")
}

func (l PrefixLayout) TransactionMetadataPath(txid string) string {
	return filepath.Join(l.TransactionsDir(), txid+".json")
}

func (l PrefixLayout) TransactionJournalPath(txid string) string {
	return filepath.Join(l.TransactionsDir(), txid+".journal")
}

func (l PrefixLayout) TransactionStagingPath(txid string) string {
	return filepath.Join(l.TransactionsStagingDir(), txid)
}

// ArtifactCachePath is where a downloaded artifact for one
// name/version/target is cached before extraction.
func (l PrefixLayout) ArtifactCachePath(name, version, target string, kind manifest.ArchiveKind) string {
	return filepath.Join(l.ArtifactsCacheDir(), name, version, target, "artifact."+kind.CacheExtension())
}

// baseDirs lists every directory EnsureBaseDirs must create; order matters
// only for readability, os.MkdirAll handles parent creation itself.
func (l PrefixLayout) baseDirs() []string {
	return []string{
		l.PkgsDir(),
		l.BinDir(),
		l.StateDir(),
		l.CacheDir(),
		l.ShareDir(),
		l.CompletionsDir(),
		l.PackageCompletionsDir(),
		l.GuiDir(),
		l.GuiLaunchersDir(),
		l.GuiHandlersDir(),
		l.ArtifactsCacheDir(),
		l.TmpStateDir(),
		l.InstalledStateDir(),
		l.PinsDir(),
		l.TransactionsDir(),
		l.TransactionsStagingDir(),
	}
}

// EnsureBaseDirs creates every directory this layout depends on existing,
// idempotently.
func (l PrefixLayout) EnsureBaseDirs() error {
	for _, dir := range l.baseDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultUserPrefix resolves the platform default prefix: %LOCALAPPDATA%\Crosspack
// on Windows, $HOME/.crosspack elsewhere.
func DefaultUserPrefix() (string, error) {
	if isWindows() {
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			return "", fmt.Errorf("LOCALAPPDATA is not set; cannot resolve Windows user prefix")
		}
		return filepath.Join(appData, "Crosspack"), nil
	}

	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("HOME is not set; cannot resolve user prefix")
	}
	return filepath.Join(home, ".crosspack"), nil
}
