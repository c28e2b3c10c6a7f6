package install

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/crosspack/crosspack/internal/layout"
	"github.com/crosspack/crosspack/internal/manifest"
)

// GuiAsset is one ownership record produced by exposing a GUI app: an
// owner key (prefixed app:/handler:/protocol:/mime:/extension:) and the
// storage-relative path of the file it owns.
type GuiAsset struct {
	Key     string
	RelPath string
}

// GuiAssetPath resolves a GUI asset's storage-relative path to its
// absolute location under share/gui/.
func GuiAssetPath(l layout.PrefixLayout, relPath string) (string, error) {
	if filepath.IsAbs(relPath) || strings.Contains(filepath.ToSlash(relPath), "../") {
		return "", fmt.Errorf("gui storage path must be relative and contain no '..': %s", relPath)
	}
	return filepath.Join(l.GuiDir(), filepath.FromSlash(relPath)), nil
}

// ProjectedGuiAssets computes the full set of ownership records a GUI app
// will produce, without writing anything: the launcher, the handler
// metadata, and one entry per protocol/mime/extension registration.
func ProjectedGuiAssets(packageName string, app manifest.GuiApp) ([]GuiAsset, error) {
	if strings.TrimSpace(app.AppID) == "" {
		return nil, fmt.Errorf("gui app id must not be empty")
	}
	if strings.TrimSpace(app.DisplayName) == "" {
		return nil, fmt.Errorf("gui app '%s' display_name must not be empty", app.AppID)
	}
	if err := ValidateRelativeBinaryPath(app.Exec); err != nil {
		return nil, fmt.Errorf("gui app '%s' exec path is invalid: %w", app.AppID, err)
	}

	packageToken := normalizeGuiToken(packageName)
	appToken := normalizeGuiToken(app.AppID)
	launcherRel := fmt.Sprintf("launchers/%s--%s.%s", packageToken, appToken, guiLauncherExtension())
	handlerRel := fmt.Sprintf("handlers/%s--%s.meta", packageToken, appToken)

	seen := map[string]bool{}
	var assets []GuiAsset
	push := func(key, relPath string) error {
		if seen[key] {
			return fmt.Errorf("duplicate gui ownership key declaration '%s': app '%s'", key, app.AppID)
		}
		seen[key] = true
		assets = append(assets, GuiAsset{Key: key, RelPath: relPath})
		return nil
	}

	if err := push("app:"+strings.ToLower(strings.TrimSpace(app.AppID)), launcherRel); err != nil {
		return nil, err
	}
	if err := push("handler:"+strings.ToLower(strings.TrimSpace(app.AppID)), handlerRel); err != nil {
		return nil, err
	}

	for _, protocol := range app.Protocols {
		scheme, err := normalizedProtocolScheme(protocol.Scheme)
		if err != nil {
			return nil, fmt.Errorf("gui app '%s' has invalid protocol scheme: %w", app.AppID, err)
		}
		if err := push("protocol:"+scheme, handlerRel); err != nil {
			return nil, err
		}
	}

	for _, association := range app.FileAssociations {
		mime := strings.ToLower(strings.TrimSpace(association.MimeType))
		if mime == "" {
			return nil, fmt.Errorf("gui app '%s' file association mime_type must not be empty", app.AppID)
		}
		if err := push("mime:"+mime, handlerRel); err != nil {
			return nil, err
		}
		for _, extension := range association.Extensions {
			normalized, err := normalizedExtension(extension)
			if err != nil {
				return nil, fmt.Errorf("gui app '%s' has invalid file association extension: %w", app.AppID, err)
			}
			if err := push("extension:"+normalized, handlerRel); err != nil {
				return nil, err
			}
		}
	}

	return assets, nil
}

// ExposeGuiApp renders a platform launcher and writes handler metadata for
// app, returning every GuiAsset produced.
func ExposeGuiApp(l layout.PrefixLayout, installRoot, packageName string, app manifest.GuiApp) ([]GuiAsset, error) {
	projected, err := ProjectedGuiAssets(packageName, app)
	if err != nil {
		return nil, err
	}

	var launcherAsset, handlerAsset *GuiAsset
	for i := range projected {
		switch {
		case strings.HasPrefix(projected[i].Key, "app:") && launcherAsset == nil:
			launcherAsset = &projected[i]
		case strings.HasPrefix(projected[i].Key, "handler:") && handlerAsset == nil:
			handlerAsset = &projected[i]
		}
	}
	if launcherAsset == nil || handlerAsset == nil {
		return nil, fmt.Errorf("missing projected launcher/handler asset for app '%s'", app.AppID)
	}

	sourcePath := filepath.Join(installRoot, filepath.FromSlash(app.Exec))
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, fmt.Errorf("declared gui app exec path '%s' was not found in install root: %s", app.Exec, sourcePath)
	}

	launcherPath, err := GuiAssetPath(l, launcherAsset.RelPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(launcherPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create gui launcher dir: %w", err)
	}
	launcher := renderGuiLauncher(app, sourcePath)
	if err := os.WriteFile(launcherPath, []byte(launcher), 0o755); err != nil {
		return nil, fmt.Errorf("failed writing gui launcher: %s: %w", launcherPath, err)
	}

	handlerPath, err := GuiAssetPath(l, handlerAsset.RelPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(handlerPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create gui handler dir: %w", err)
	}
	if err := os.WriteFile(handlerPath, []byte(renderGuiHandlerMetadata(app)), 0o644); err != nil {
		return nil, fmt.Errorf("failed writing gui handler metadata: %s: %w", handlerPath, err)
	}

	return projected, nil
}

// RemoveExposedGuiAsset removes one GUI asset file and prunes its
// now-empty ancestor directories bounded to share/gui/.
func RemoveExposedGuiAsset(l layout.PrefixLayout, asset GuiAsset) error {
	path, err := GuiAssetPath(l, asset.RelPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove exposed gui asset: %s: %w", path, err)
	}
	pruneEmptyDirsUpTo(filepath.Dir(path), l.GuiDir())
	return nil
}

func renderGuiHandlerMetadata(app manifest.GuiApp) string {
	var b strings.Builder
	fmt.Fprintf(&b, "app_id=%s\n", sanitizeGuiMetadataValue(app.AppID))
	fmt.Fprintf(&b, "display_name=%s\n", sanitizeGuiMetadataValue(app.DisplayName))
	fmt.Fprintf(&b, "exec=%s\n", sanitizeGuiMetadataValue(app.Exec))
	if app.Icon != "" {
		fmt.Fprintf(&b, "icon=%s\n", sanitizeGuiMetadataValue(app.Icon))
	}
	for _, category := range app.Categories {
		fmt.Fprintf(&b, "category=%s\n", sanitizeGuiMetadataValue(category))
	}
	for _, protocol := range app.Protocols {
		fmt.Fprintf(&b, "protocol=%s\n", sanitizeGuiMetadataValue(protocol.Scheme))
	}
	for _, association := range app.FileAssociations {
		fmt.Fprintf(&b, "mime=%s\n", sanitizeGuiMetadataValue(association.MimeType))
		for _, extension := range association.Extensions {
			fmt.Fprintf(&b, "extension=%s\n", sanitizeGuiMetadataValue(extension))
		}
	}
	return b.String()
}

// renderGuiLauncher renders a platform-appropriate launcher script: a
// Windows .cmd shim, a Linux .desktop entry, or (elsewhere) a POSIX shell
// wrapper that uses `open -a` when the exec target is a macOS .app bundle.
func renderGuiLauncher(app manifest.GuiApp, sourcePath string) string {
	switch {
	case runtime.GOOS == "windows":
		return fmt.Sprintf("@echo off\r\nREM %s\r\n\"%s\" %%*\r\n", sanitizeGuiMetadataValue(app.DisplayName), sourcePath)
	case runtime.GOOS == "linux":
		return renderDesktopEntry(app, sourcePath)
	case runtime.GOOS == "darwin" && strings.EqualFold(filepath.Ext(sourcePath), ".app"):
		return fmt.Sprintf("#!/bin/sh\n# %s\nopen -a \"%s\" --args \"$@\"\n", sanitizeGuiMetadataValue(app.DisplayName), sourcePath)
	default:
		return fmt.Sprintf("#!/bin/sh\n# %s\nexec \"%s\" \"$@\"\n", sanitizeGuiMetadataValue(app.DisplayName), sourcePath)
	}
}

func renderDesktopEntry(app manifest.GuiApp, sourcePath string) string {
	var mimeEntries []string
	for _, association := range app.FileAssociations {
		if token := sanitizeDesktopListToken(association.MimeType); token != "" {
			mimeEntries = append(mimeEntries, token)
		}
	}
	for _, protocol := range app.Protocols {
		mimeEntries = append(mimeEntries, "x-scheme-handler/"+sanitizeDesktopListToken(protocol.Scheme))
	}

	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", sanitizeGuiMetadataValue(app.DisplayName))
	fmt.Fprintf(&b, "Exec=\"%s\" %%U\n", sourcePath)
	if app.Icon != "" {
		fmt.Fprintf(&b, "Icon=%s\n", sanitizeGuiMetadataValue(app.Icon))
	}
	var categories []string
	for _, category := range app.Categories {
		if token := sanitizeDesktopListToken(category); token != "" {
			categories = append(categories, token)
		}
	}
	if len(categories) > 0 {
		fmt.Fprintf(&b, "Categories=%s;\n", strings.Join(categories, ";"))
	}
	if len(mimeEntries) > 0 {
		fmt.Fprintf(&b, "MimeType=%s;\n", strings.Join(mimeEntries, ";"))
	}
	return b.String()
}

func guiLauncherExtension() string {
	switch runtime.GOOS {
	case "windows":
		return "cmd"
	case "linux":
		return "desktop"
	default:
		return "command"
	}
}

func normalizeGuiToken(value string) string {
	return normalizeCompletionToken(value)
}

func normalizedProtocolScheme(scheme string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(scheme))
	if trimmed == "" {
		return "", fmt.Errorf("protocol scheme must not be empty")
	}
	runes := []rune(trimmed)
	if !isASCIIAlpha(runes[0]) {
		return "", fmt.Errorf("protocol scheme must start with an ASCII letter")
	}
	for _, ch := range runes[1:] {
		if !(isASCIIAlphaNumeric(ch) || ch == '+' || ch == '-' || ch == '.') {
			return "", fmt.Errorf("protocol scheme contains invalid character(s)")
		}
	}
	return trimmed, nil
}

func normalizedExtension(extension string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(extension))
	if trimmed == "" {
		return "", fmt.Errorf("file association extension must not be empty")
	}
	if !strings.HasPrefix(trimmed, ".") {
		trimmed = "." + trimmed
	}
	for _, ch := range trimmed[1:] {
		if !(isASCIIAlphaNumeric(ch) || ch == '_' || ch == '-') {
			return "", fmt.Errorf("file association extension contains invalid character(s)")
		}
	}
	return trimmed, nil
}

func sanitizeGuiMetadataValue(value string) string {
	replaced := strings.Map(func(ch rune) rune {
		if ch == '\n' || ch == '\r' {
			return ' '
		}
		return ch
	}, value)
	return strings.TrimSpace(replaced)
}

func sanitizeDesktopListToken(value string) string {
	return strings.ReplaceAll(strings.TrimSpace(value), ";", "_")
}

func isASCIIAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIAlphaNumeric(r rune) bool {
	return isASCIIAlpha(r) || (r >= '0' && r <= '9')
}

func sortGuiAssetKeys(assets []GuiAsset) []string {
	keys := make([]string, 0, len(assets))
	for _, asset := range assets {
		keys = append(keys, asset.Key)
	}
	sort.Strings(keys)
	return keys
}

// WriteGuiState persists name's GUI exposure ledger as tab-delimited
// `asset=<key>\t<rel_path>` lines, so uninstall can reverse every asset
// without recomputing projections from the manifest.
func WriteGuiState(l layout.PrefixLayout, name string, assets []GuiAsset) (string, error) {
	var b strings.Builder
	for _, asset := range assets {
		fmt.Fprintf(&b, "asset=%s\t%s\n", asset.Key, asset.RelPath)
	}
	path := l.GuiStatePath(name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write gui exposure state: %s: %w", path, err)
	}
	return path, nil
}

// ReadGuiState loads name's GUI exposure ledger, or (nil, nil) if it has
// none.
func ReadGuiState(l layout.PrefixLayout, name string) ([]GuiAsset, error) {
	path := l.GuiStatePath(name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read gui exposure state: %s: %w", path, err)
	}

	var assets []GuiAsset
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, rest, ok := strings.Cut(line, "=")
		if !ok || key != "asset" {
			continue
		}
		assetKey, relPath, ok := strings.Cut(rest, "\t")
		if !ok {
			continue
		}
		assets = append(assets, GuiAsset{Key: assetKey, RelPath: relPath})
	}
	return assets, nil
}

// RemoveGuiState deletes name's GUI exposure ledger file.
func RemoveGuiState(l layout.PrefixLayout, name string) error {
	path := l.GuiStatePath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove gui exposure state: %s: %w", path, err)
	}
	return nil
}
