package manifest

import "strings"

// ArchiveKind enumerates the closed set of recognized artifact archive
// kinds. Unlike a Linux distribution's package format, this set names only
// generic archive containers (zip, tar.gz, tar.zst, bin) and the
// platform-native installer formats crosspack defers to a sidecar for
// (msi, dmg, appimage, exe, pkg, msix, appx). It is deliberately closed:
// there is no "deb" or "rpm".
type ArchiveKind string

const (
	ArchiveZip      ArchiveKind = "zip"
	ArchiveTarGz    ArchiveKind = "tar.gz"
	ArchiveTarZst   ArchiveKind = "tar.zst"
	ArchiveBin      ArchiveKind = "bin"
	ArchiveMsi      ArchiveKind = "msi"
	ArchiveDmg      ArchiveKind = "dmg"
	ArchiveAppImage ArchiveKind = "appimage"
	ArchiveExe      ArchiveKind = "exe"
	ArchivePkg      ArchiveKind = "pkg"
	ArchiveMsix     ArchiveKind = "msix"
	ArchiveAppx     ArchiveKind = "appx"
)

// nativeArchiveKinds are extracted by a platform sidecar rather than
// DefaultExtractor (internal/archive).
var nativeArchiveKinds = map[ArchiveKind]bool{
	ArchiveMsi:      true,
	ArchiveDmg:      true,
	ArchiveAppImage: true,
	ArchiveExe:      true,
	ArchivePkg:      true,
	ArchiveMsix:     true,
	ArchiveAppx:     true,
}

// IsNative reports whether installing this kind requires the native
// installer sidecar (§4.9 step 4) rather than DefaultExtractor.
func (k ArchiveKind) IsNative() bool { return nativeArchiveKinds[k] }

// CacheExtension is the file extension used for the cached artifact under
// cache/artifacts/<name>/<version>/<target>/artifact.<ext>. It is identity
// with the kind string, per §4.1.
func (k ArchiveKind) CacheExtension() string { return string(k) }

// ParseArchiveKind parses an explicit archive tag string, accepting the
// common tgz/tzst abbreviations.
func ParseArchiveKind(s string) (ArchiveKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zip":
		return ArchiveZip, true
	case "tar.gz", "tgz":
		return ArchiveTarGz, true
	case "tar.zst", "tzst":
		return ArchiveTarZst, true
	case "bin":
		return ArchiveBin, true
	case "msi":
		return ArchiveMsi, true
	case "dmg":
		return ArchiveDmg, true
	case "appimage":
		return ArchiveAppImage, true
	case "exe":
		return ArchiveExe, true
	case "pkg":
		return ArchivePkg, true
	case "msix":
		return ArchiveMsix, true
	case "appx":
		return ArchiveAppx, true
	default:
		return "", false
	}
}

// inferArchiveKindFromURL infers an archive kind from a URL's suffix, per
// §4.1: known suffix wins; otherwise a final path segment with no dot
// defaults to Bin; otherwise no inference is possible.
func inferArchiveKindFromURL(url string) (ArchiveKind, bool) {
	lower := strings.ToLower(url)

	suffixes := []struct {
		suffix string
		kind   ArchiveKind
	}{
		{".tar.gz", ArchiveTarGz},
		{".tgz", ArchiveTarGz},
		{".tar.zst", ArchiveTarZst},
		{".tzst", ArchiveTarZst},
		{".zip", ArchiveZip},
		{".bin", ArchiveBin},
		{".msi", ArchiveMsi},
		{".dmg", ArchiveDmg},
		{".appimage", ArchiveAppImage},
		{".exe", ArchiveExe},
		{".pkg", ArchivePkg},
		{".msix", ArchiveMsix},
		{".appx", ArchiveAppx},
	}
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind, true
		}
	}

	withoutFragment := strings.SplitN(lower, "#", 2)[0]
	withoutQuery := strings.SplitN(withoutFragment, "?", 2)[0]
	segments := strings.Split(withoutQuery, "/")
	fileName := segments[len(segments)-1]
	if fileName != "" && !strings.Contains(fileName, ".") {
		return ArchiveBin, true
	}

	return "", false
}
