package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crosspack/crosspack/internal/archive"
	"github.com/crosspack/crosspack/internal/crosserr"
	"github.com/crosspack/crosspack/internal/layout"
	"github.com/crosspack/crosspack/internal/manifest"
	"github.com/crosspack/crosspack/internal/sig"
	"github.com/crosspack/crosspack/internal/txn"
)

// ArtifactFetcher is the capability install uses to retrieve an artifact's
// bytes; satisfied by internal/fetch.DefaultFetcher.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// ArchiveExtractor is the capability install uses to unpack an artifact's
// bytes; satisfied by internal/archive.DefaultExtractor.
type ArchiveExtractor interface {
	Extract(archivePath string, kind manifest.ArchiveKind, destDir string, opts archive.Options) error
}

// Options configures one InstallResolved call.
type Options struct {
	Target          string
	ForceRedownload bool
	DryRun          bool
}

// InstallPlan is what InstallResolved would do, surfaced for --dry-run without any
// filesystem mutation.
type InstallPlan struct {
	Name         string
	Version      string
	Target       string
	ArtifactURL  string
	CachePath    string
	WillDownload bool
	Binaries     []string
	Completions  []string
	GuiAppIDs    []string
}

// PlanInstall computes what InstallResolved would do for m against opts,
// performing no I/O beyond a cache-file existence check.
func PlanInstall(l layout.PrefixLayout, m *manifest.PackageManifest, opts Options) (*InstallPlan, error) {
	artifact, err := selectArtifact(m, opts.Target)
	if err != nil {
		return nil, err
	}
	kind, err := artifact.ArchiveKindFor()
	if err != nil {
		return nil, err
	}
	cachePath := l.ArtifactCachePath(m.Name, m.Version.String(), artifact.Target, kind)
	_, statErr := os.Stat(cachePath)
	willDownload := opts.ForceRedownload || os.IsNotExist(statErr)

	plan := &InstallPlan{
		Name:         m.Name,
		Version:      m.Version.String(),
		Target:       artifact.Target,
		ArtifactURL:  artifact.URL,
		CachePath:    cachePath,
		WillDownload: willDownload,
	}
	for _, b := range artifact.Binaries {
		plan.Binaries = append(plan.Binaries, b.Name)
	}
	for _, c := range artifact.Completions {
		plan.Completions = append(plan.Completions, fmt.Sprintf("%s:%s", c.Shell, c.Path))
	}
	for _, app := range artifact.GuiApps {
		plan.GuiAppIDs = append(plan.GuiAppIDs, app.AppID)
	}
	return plan, nil
}

// InstallResolved installs one resolved package per §4.9: fetch, verify,
// extract, expose, and record a receipt. t must already have an active
// transaction (see txn.Begin); the caller is responsible for committing or
// aborting once every package in a resolved graph has been applied.
// dependencies are "<name>@<version>" tokens, recorded verbatim on the
// receipt.
func InstallResolved(
	ctx context.Context,
	l layout.PrefixLayout,
	t *txn.Transaction,
	m *manifest.PackageManifest,
	dependencies []string,
	reason InstallReason,
	fetcher ArtifactFetcher,
	extractor ArchiveExtractor,
	opts Options,
) (*Receipt, error) {
	artifact, err := selectArtifact(m, opts.Target)
	if err != nil {
		return nil, err
	}

	kind, err := artifact.ArchiveKindFor()
	if err != nil {
		return nil, err
	}

	cachePath := l.ArtifactCachePath(m.Name, m.Version.String(), artifact.Target, kind)
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact cache dir: %w", err)
	}

	if _, statErr := os.Stat(cachePath); opts.ForceRedownload || os.IsNotExist(statErr) {
		if err := fetcher.Fetch(ctx, artifact.URL, cachePath); err != nil {
			return nil, fmt.Errorf("failed to fetch artifact: %w", err)
		}
	}
	if err := t.Append("artifact_fetched", "done", cachePath); err != nil {
		return nil, err
	}

	if err := verifyArtifact(cachePath, artifact); err != nil {
		return nil, err
	}
	if err := t.Append("artifact_verified", "done", cachePath); err != nil {
		return nil, err
	}

	installMode := ModeManaged
	installRoot := l.PackageDir(m.Name, m.Version.String())

	if kind.IsNative() {
		installMode = ModeNative
		if err := os.MkdirAll(installRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create package dir: %w", err)
		}
		if err := t.Append("native_install_deferred", "done", installRoot); err != nil {
			return nil, err
		}
	} else {
		if err := os.MkdirAll(installRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create package dir: %w", err)
		}
		stripComponents := uint32(0)
		if artifact.StripComponents != nil {
			stripComponents = *artifact.StripComponents
		}
		err := extractor.Extract(cachePath, kind, installRoot, archive.Options{
			StripComponents: stripComponents,
			ArtifactRoot:    artifact.ArtifactRoot,
		})
		if err != nil {
			return nil, err
		}
		if err := t.Append("artifact_extracted", "done", installRoot); err != nil {
			return nil, err
		}
	}

	receipt := Receipt{
		Name:            m.Name,
		Version:         m.Version.String(),
		Target:          artifact.Target,
		ArtifactURL:     artifact.URL,
		ArtifactSHA256:  artifact.SHA256,
		CachePath:       cachePath,
		InstallMode:     installMode,
		InstallReason:   reason,
		InstallStatus:   "installed",
		InstalledAtUnix: txn.CurrentUnixTimestamp(),
	}
	receipt.Dependencies = dependencies

	if installMode == ModeManaged {
		for _, binary := range artifact.Binaries {
			if err := ExposeBinary(l, installRoot, binary.Name, binary.Path); err != nil {
				return nil, fmt.Errorf("failed exposing binary %q: %w", binary.Name, err)
			}
			receipt.ExposedBins = append(receipt.ExposedBins, binary.Name)
			if err := t.Append("binary_exposed", "done", BinPath(l, binary.Name)); err != nil {
				return nil, err
			}
		}

		for _, completion := range artifact.Completions {
			storageRelPath, err := ExposeCompletion(l, installRoot, m.Name, completion.Shell, completion.Path)
			if err != nil {
				return nil, fmt.Errorf("failed exposing completion for %s: %w", completion.Shell, err)
			}
			receipt.ExposedCompletions = append(receipt.ExposedCompletions, storageRelPath)
			if err := t.Append("completion_exposed", "done", storageRelPath); err != nil {
				return nil, err
			}
		}

		var guiAssets []GuiAsset
		for _, app := range artifact.GuiApps {
			assets, err := ExposeGuiApp(l, installRoot, m.Name, app)
			if err != nil {
				return nil, fmt.Errorf("failed exposing gui app %q: %w", app.AppID, err)
			}
			guiAssets = append(guiAssets, assets...)
		}
		if len(guiAssets) > 0 {
			guiStatePath, err := WriteGuiState(l, m.Name, guiAssets)
			if err != nil {
				return nil, err
			}
			if err := t.Append("gui_exposed", "done", guiStatePath); err != nil {
				return nil, err
			}
		}
	}

	receiptPath, err := WriteReceipt(l, receipt)
	if err != nil {
		return nil, err
	}
	if err := t.Append("receipt_written", "done", receiptPath); err != nil {
		return nil, err
	}

	return &receipt, nil
}

// selectArtifact finds the artifact matching target (defaulting to the
// current host's target when target is empty), per §4.9 step 1.
func selectArtifact(m *manifest.PackageManifest, target string) (*manifest.Artifact, error) {
	if target == "" {
		hostTarget, err := HostTarget()
		if err != nil {
			return nil, err
		}
		target = hostTarget
	}
	for i := range m.Artifacts {
		if m.Artifacts[i].Target == target {
			return &m.Artifacts[i], nil
		}
	}
	return nil, fmt.Errorf("package '%s' %s has no artifact for target '%s'", m.Name, m.Version, target)
}

// verifyArtifact checks the cached artifact's size (if declared) and
// SHA-256 against the manifest, per §4.9 step 3.
func verifyArtifact(cachePath string, artifact *manifest.Artifact) error {
	info, err := os.Stat(cachePath)
	if err != nil {
		return fmt.Errorf("failed to stat cached artifact: %s: %w", cachePath, err)
	}
	if artifact.Size != nil && uint64(info.Size()) != *artifact.Size {
		return fmt.Errorf("%w: expected %d bytes, got %d for %s", crosserr.ErrArtifactHashMismatch, *artifact.Size, info.Size(), cachePath)
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return fmt.Errorf("failed to read cached artifact: %s: %w", cachePath, err)
	}
	actual := sig.SHA256Hex(data)
	if actual != artifact.SHA256 {
		return fmt.Errorf("%w: expected %s, got %s for %s", crosserr.ErrArtifactHashMismatch, artifact.SHA256, actual, cachePath)
	}
	return nil
}
