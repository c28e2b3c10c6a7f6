package manifest

import "fmt"

// ArtifactBinary names one binary exposed from an extracted artifact root,
// e.g. {Name: "jq", Path: "bin/jq"}.
type ArtifactBinary struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// CompletionShell enumerates the shells crosspack can expose completion
// scripts for.
type CompletionShell string

const (
	ShellBash       CompletionShell = "bash"
	ShellZsh        CompletionShell = "zsh"
	ShellFish       CompletionShell = "fish"
	ShellPowershell CompletionShell = "powershell"
)

// ArtifactCompletion names a completion script's shell and its path
// relative to the extracted artifact root.
type ArtifactCompletion struct {
	Shell CompletionShell `toml:"shell"`
	Path  string          `toml:"path"`
}

// Artifact is one platform-specific download for a package version: a URL,
// its expected hash, and the binaries/completions/GUI apps it exposes once
// extracted.
type Artifact struct {
	Target           string               `toml:"target"`
	URL              string               `toml:"url"`
	SHA256           string               `toml:"sha256"`
	Size             *uint64              `toml:"size,omitempty"`
	Signature        string               `toml:"signature,omitempty"`
	Archive          string               `toml:"archive,omitempty"`
	StripComponents  *uint32              `toml:"strip_components,omitempty"`
	ArtifactRoot     string               `toml:"artifact_root,omitempty"`
	Binaries         []ArtifactBinary     `toml:"binaries,omitempty"`
	Completions      []ArtifactCompletion `toml:"completions,omitempty"`
	GuiApps          []GuiApp             `toml:"gui_apps,omitempty"`
}

// ArchiveKindFor resolves the artifact's archive kind: the declared
// `archive` tag when present, otherwise inference from the URL suffix, per
// §4.1.
func (a *Artifact) ArchiveKindFor() (ArchiveKind, error) {
	if a.Archive != "" {
		kind, ok := ParseArchiveKind(a.Archive)
		if !ok {
			return "", fmt.Errorf("%w: unsupported archive type %q for target %q; supported: zip, tar.gz, tar.zst, bin, msi, dmg, appimage, exe, pkg, msix, appx", errUnknownArchiveKind, a.Archive, a.Target)
		}
		return kind, nil
	}

	kind, ok := inferArchiveKindFromURL(a.URL)
	if !ok {
		return "", fmt.Errorf("%w: could not infer archive type from URL %q for target %q; set artifact.archive explicitly", errUnknownArchiveKind, a.URL, a.Target)
	}
	return kind, nil
}
