// Package archive implements the default ArchiveExtractor capability of
// §4.9: extracting zip, tar.gz, and tar.zst artifacts into a package's
// install tree, honoring strip_components and artifact_root. Platform
// native kinds (msi, dmg, appimage, exe, pkg, msix, appx) are never handled
// here — callers must check ArchiveKind.IsNative first and defer to the
// native installer sidecar instead.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/crosspack/crosspack/internal/crosserr"
	"github.com/crosspack/crosspack/internal/manifest"
)

// Options configures one extraction.
type Options struct {
	// StripComponents removes this many leading path components from every
	// entry before it is written.
	StripComponents uint32
	// ArtifactRoot, if non-empty, is a path prefix (applied after strip)
	// that must prefix every entry; entries outside it are skipped and the
	// prefix itself is stripped from the destination path.
	ArtifactRoot string
}

// DefaultExtractor extracts zip, tar.gz, and tar.zst archives. It is the
// crosspack-provided implementation of the ArchiveExtractor capability;
// callers needing platform-native formats provide their own.
type DefaultExtractor struct{}

// Extract extracts the archive at archivePath (of the given kind) into
// destDir, which must already exist.
func (DefaultExtractor) Extract(archivePath string, kind manifest.ArchiveKind, destDir string, opts Options) error {
	if kind.IsNative() {
		return fmt.Errorf("%w: archive kind %q requires the native installer sidecar", crosserr.ErrArchiveExtractFailed, kind)
	}

	switch kind {
	case manifest.ArchiveZip:
		return extractZip(archivePath, destDir, opts)
	case manifest.ArchiveTarGz:
		return extractTar(archivePath, destDir, opts, gzipReader)
	case manifest.ArchiveTarZst:
		return extractTar(archivePath, destDir, opts, zstdReader)
	case manifest.ArchiveBin:
		return extractBin(archivePath, destDir)
	default:
		return fmt.Errorf("%w: %q", crosserr.ErrArchiveExtractFailed, kind)
	}
}

func gzipReader(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }

func zstdReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func extractTar(archivePath, destDir string, opts Options, wrap func(io.Reader) (io.ReadCloser, error)) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", crosserr.ErrArchiveExtractFailed, archivePath, err)
	}
	defer f.Close()

	decompressed, err := wrap(f)
	if err != nil {
		return fmt.Errorf("%w: failed to decompress %s: %v", crosserr.ErrArchiveExtractFailed, archivePath, err)
	}
	defer decompressed.Close()

	tr := tar.NewReader(decompressed)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: failed reading tar entry: %v", crosserr.ErrArchiveExtractFailed, err)
		}

		relPath, ok := resolveEntryPath(header.Name, opts)
		if !ok {
			continue
		}
		destPath, err := safeJoin(destDir, relPath)
		if err != nil {
			return fmt.Errorf("%w: %v", crosserr.ErrArchiveExtractFailed, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("%w: failed creating directory %s: %v", crosserr.ErrArchiveExtractFailed, destPath, err)
			}
		case tar.TypeReg:
			if err := writeRegularFile(destPath, tr, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("%w: %v", crosserr.ErrArchiveExtractFailed, err)
			}
		case tar.TypeSymlink:
			if err := writeSymlink(destPath, header.Linkname); err != nil {
				return fmt.Errorf("%w: %v", crosserr.ErrArchiveExtractFailed, err)
			}
		}
	}
	return nil
}

func extractZip(archivePath, destDir string, opts Options) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", crosserr.ErrArchiveExtractFailed, archivePath, err)
	}
	defer r.Close()

	for _, entry := range r.File {
		relPath, ok := resolveEntryPath(entry.Name, opts)
		if !ok {
			continue
		}
		destPath, err := safeJoin(destDir, relPath)
		if err != nil {
			return fmt.Errorf("%w: %v", crosserr.ErrArchiveExtractFailed, err)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("%w: failed creating directory %s: %v", crosserr.ErrArchiveExtractFailed, destPath, err)
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("%w: failed opening zip entry %s: %v", crosserr.ErrArchiveExtractFailed, entry.Name, err)
		}
		writeErr := writeRegularFile(destPath, rc, entry.Mode())
		rc.Close()
		if writeErr != nil {
			return fmt.Errorf("%w: %v", crosserr.ErrArchiveExtractFailed, writeErr)
		}
	}
	return nil
}

// extractBin places a single bare executable at destDir/<basename>.
func extractBin(archivePath, destDir string) error {
	name := filepath.Base(archivePath)
	destPath := filepath.Join(destDir, name)
	src, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", crosserr.ErrArchiveExtractFailed, archivePath, err)
	}
	defer src.Close()
	if err := writeRegularFile(destPath, src, 0o755); err != nil {
		return fmt.Errorf("%w: %v", crosserr.ErrArchiveExtractFailed, err)
	}
	return nil
}

// resolveEntryPath applies StripComponents and ArtifactRoot to an archive
// entry name, returning the destination-relative path and whether the
// entry survives filtering.
func resolveEntryPath(entryName string, opts Options) (string, bool) {
	cleaned := path.Clean(strings.ReplaceAll(entryName, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	parts := strings.Split(cleaned, "/")

	if int(opts.StripComponents) >= len(parts) {
		return "", false
	}
	parts = parts[opts.StripComponents:]

	if opts.ArtifactRoot != "" {
		root := strings.Trim(opts.ArtifactRoot, "/")
		rootParts := strings.Split(root, "/")
		if len(parts) < len(rootParts) {
			return "", false
		}
		for i, rp := range rootParts {
			if parts[i] != rp {
				return "", false
			}
		}
		parts = parts[len(rootParts):]
	}

	if len(parts) == 0 {
		return "", false
	}
	return path.Join(parts...), true
}

// safeJoin joins rel onto dir, refusing any path that escapes dir (zip-slip
// / tar-slip protection).
func safeJoin(dir, rel string) (string, error) {
	joined := filepath.Join(dir, rel)
	cleanDir := filepath.Clean(dir) + string(os.PathSeparator)
	if !strings.HasPrefix(joined+string(os.PathSeparator), cleanDir) && joined != filepath.Clean(dir) {
		return "", fmt.Errorf("archive entry escapes destination: %s", rel)
	}
	return joined, nil
}

func writeRegularFile(destPath string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating parent directory for %s: %w", destPath, err)
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed creating %s: %w", destPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

func writeSymlink(destPath, target string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating parent directory for %s: %w", destPath, err)
	}
	_ = os.Remove(destPath)
	if err := os.Symlink(target, destPath); err != nil {
		return fmt.Errorf("failed creating symlink %s -> %s: %w", destPath, target, err)
	}
	return nil
}
