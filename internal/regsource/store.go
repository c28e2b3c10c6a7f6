package regsource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/nightlyone/lockfile"
)

const sourceStateVersion = 1

// stateFile is the on-disk shape of sources.toml.
type stateFile struct {
	Version int            `toml:"version"`
	Sources []SourceRecord `toml:"sources"`
}

// legacyStateFile is sources.toml as it looked before the version field
// existed: a bare sources array.
type legacyStateFile struct {
	Sources []SourceRecord `toml:"sources"`
}

// Store owns sources.toml and the per-source caches under
// <stateRoot>/cache/<name>/.
type Store struct {
	StateRoot string
}

// New returns a Store rooted at stateRoot (the registry state directory,
// e.g. <prefix>/state/registry).
func New(stateRoot string) *Store {
	return &Store{StateRoot: stateRoot}
}

func (s *Store) sourcesFilePath() string { return filepath.Join(s.StateRoot, "sources.toml") }
func (s *Store) lockPath() string        { return s.sourcesFilePath() + ".lock" }

// withLock serializes mutations to sources.toml across processes using an
// advisory lock file independent of the transaction engine's own locking.
func (s *Store) withLock(fn func() error) error {
	if err := os.MkdirAll(s.StateRoot, 0o755); err != nil {
		return fmt.Errorf("failed creating source state root %s: %w", s.StateRoot, err)
	}
	lock, err := lockfile.New(s.lockPath())
	if err != nil {
		return fmt.Errorf("failed constructing sources.toml lock: %w", err)
	}
	if err := lock.TryLock(); err != nil {
		return fmt.Errorf("another crosspack process is modifying registry sources: %w", err)
	}
	defer lock.Unlock()
	return fn()
}

// AddSource registers a new source, rejecting a duplicate name.
func (s *Store) AddSource(source SourceRecord) error {
	if err := validateSourceName(source.Name); err != nil {
		return err
	}
	if err := validateSourceFingerprint(source.FingerprintSHA256); err != nil {
		return err
	}

	return s.withLock(func() error {
		state, err := s.loadState()
		if err != nil {
			return err
		}
		for _, existing := range state.Sources {
			if existing.Name == source.Name {
				return fmt.Errorf("source '%s' already exists", source.Name)
			}
		}
		state.Sources = append(state.Sources, source)
		sortSources(state.Sources)
		return s.saveState(state)
	})
}

// ListSources returns every configured source, priority order then name.
func (s *Store) ListSources() ([]SourceRecord, error) {
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}
	sortSources(state.Sources)
	return state.Sources, nil
}

// ListSourcesWithSnapshotState returns every configured source paired with
// its cached snapshot readiness.
func (s *Store) ListSourcesWithSnapshotState() ([]SourceWithSnapshotState, error) {
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}
	sortSources(state.Sources)

	listed := make([]SourceWithSnapshotState, 0, len(state.Sources))
	for _, source := range state.Sources {
		cacheRoot := filepath.Join(s.StateRoot, "cache", source.Name)
		listed = append(listed, SourceWithSnapshotState{
			Source:   source,
			Snapshot: readSnapshotState(cacheRoot),
		})
	}
	return listed, nil
}

// RemoveSource deregisters a source by name.
func (s *Store) RemoveSource(name string) error {
	return s.withLock(func() error {
		state, err := s.loadState()
		if err != nil {
			return err
		}
		before := len(state.Sources)
		state.Sources = filterSources(state.Sources, func(r SourceRecord) bool { return r.Name != name })
		if len(state.Sources) == before {
			return fmt.Errorf("source '%s' not found", name)
		}
		sortSources(state.Sources)
		return s.saveState(state)
	})
}

// RemoveSourceWithCachePurge removes a source and optionally deletes its
// cache directory.
func (s *Store) RemoveSourceWithCachePurge(name string, purgeCache bool) error {
	if err := s.RemoveSource(name); err != nil {
		return err
	}
	if !purgeCache {
		return nil
	}
	cachePath := filepath.Join(s.StateRoot, "cache", name)
	if _, err := os.Stat(cachePath); err == nil {
		if err := os.RemoveAll(cachePath); err != nil {
			return fmt.Errorf("failed purging source cache %s: %w", cachePath, err)
		}
	}
	return nil
}

// UpdateSources syncs every named source (or all sources, if targetNames
// is empty) and reports the per-source outcome; a single source's failure
// does not abort the others.
func (s *Store) UpdateSources(targetNames []string) ([]UpdateResult, error) {
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}
	selected, err := selectUpdateSources(state.Sources, targetNames)
	if err != nil {
		return nil, err
	}

	results := make([]UpdateResult, 0, len(selected))
	for _, source := range selected {
		status, snapshotID, err := updateSource(s, source)
		if err != nil {
			results = append(results, UpdateResult{Name: source.Name, Status: StatusFailed, Error: err.Error()})
			continue
		}
		results = append(results, UpdateResult{Name: source.Name, Status: status, SnapshotID: snapshotID})
	}
	return results, nil
}

// CacheRoot returns the cache directory for a named source.
func (s *Store) CacheRoot(name string) string {
	return filepath.Join(s.StateRoot, "cache", name)
}

// LoadEnabledSources returns the enabled, priority-sorted sources, plus
// whether sources.toml exists at all. OpenConfiguredIndex uses the
// "does the file exist" bit to distinguish "never configured" from
// "configured but nothing is ready" when deciding whether to error.
func (s *Store) LoadEnabledSources() (sources []SourceRecord, hasSourcesFile bool, err error) {
	path := s.sourcesFilePath()
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed reading source state %s: %w", path, statErr)
	}

	state, err := s.loadState()
	if err != nil {
		return nil, true, err
	}

	enabled := filterSources(state.Sources, func(r SourceRecord) bool { return r.Enabled })
	sortSources(enabled)
	return enabled, true, nil
}

func (s *Store) loadState() (*stateFile, error) {
	path := s.sourcesFilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &stateFile{Version: sourceStateVersion}, nil
		}
		return nil, fmt.Errorf("failed reading source state %s: %w", path, err)
	}

	state, err := parseSourceStateFile(data)
	if err != nil {
		return nil, fmt.Errorf("failed parsing source state %s: %w", path, err)
	}
	sortSources(state.Sources)
	return state, nil
}

func (s *Store) saveState(state *stateFile) error {
	if err := os.MkdirAll(s.StateRoot, 0o755); err != nil {
		return fmt.Errorf("failed creating source state root %s: %w", s.StateRoot, err)
	}

	sorted := *state
	sorted.Sources = append([]SourceRecord(nil), state.Sources...)
	sortSources(sorted.Sources)
	sorted.Version = sourceStateVersion

	path := s.sourcesFilePath()
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sources.toml.tmp-*")
	if err != nil {
		return fmt.Errorf("failed creating temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	encoder := toml.NewEncoder(tmp)
	if err := encoder.Encode(sorted); err != nil {
		tmp.Close()
		return fmt.Errorf("failed serializing source state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed writing source state %s: %w", path, err)
	}
	return nil
}

// parseSourceStateFile parses sources.toml, accepting both the current
// versioned shape and the legacy bare-array shape.
func parseSourceStateFile(data []byte) (*stateFile, error) {
	var probe map[string]interface{}
	if err := toml.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if _, hasVersion := probe["version"]; hasVersion {
		var parsed stateFile
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed parsing versioned source state: %w", err)
		}
		if parsed.Version != sourceStateVersion {
			return nil, fmt.Errorf("unsupported source state version %d (expected %d): update sources.toml to version %d", parsed.Version, sourceStateVersion, sourceStateVersion)
		}
		if err := validateLoadedSources(parsed.Sources); err != nil {
			return nil, err
		}
		return &parsed, nil
	}

	var legacy legacyStateFile
	if err := toml.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed parsing legacy source state: %w", err)
	}
	if err := validateLoadedSources(legacy.Sources); err != nil {
		return nil, err
	}
	return &stateFile{Version: sourceStateVersion, Sources: legacy.Sources}, nil
}

func sortSources(sources []SourceRecord) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].Priority != sources[j].Priority {
			return sources[i].Priority < sources[j].Priority
		}
		return sources[i].Name < sources[j].Name
	})
}

func filterSources(sources []SourceRecord, keep func(SourceRecord) bool) []SourceRecord {
	out := sources[:0:0]
	for _, s := range sources {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func validateSourceName(name string) error {
	if name == "" || len(name) > 64 {
		return fmt.Errorf("invalid source name: must be 1 to 64 characters")
	}
	runes := []rune(name)
	first := runes[0]
	firstValid := (first >= 'a' && first <= 'z') || (first >= '0' && first <= '9')
	if !firstValid {
		return fmt.Errorf("invalid source name: '%s'", name)
	}
	for _, ch := range runes[1:] {
		if !((ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_') {
			return fmt.Errorf("invalid source name: '%s'", name)
		}
	}
	return nil
}

func validateSourceFingerprint(fingerprint string) error {
	if len(fingerprint) != 64 || !isHex(fingerprint) {
		return fmt.Errorf("invalid source fingerprint: '%s'", fingerprint)
	}
	return nil
}

func isHex(s string) bool {
	for _, ch := range s {
		isDigit := ch >= '0' && ch <= '9'
		isLower := ch >= 'a' && ch <= 'f'
		isUpper := ch >= 'A' && ch <= 'F'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return true
}

func validateLoadedSources(sources []SourceRecord) error {
	seen := make(map[string]bool, len(sources))
	for _, source := range sources {
		if err := validateSourceName(source.Name); err != nil {
			return err
		}
		if err := validateSourceFingerprint(source.FingerprintSHA256); err != nil {
			return err
		}
		if seen[source.Name] {
			return fmt.Errorf("duplicate source name '%s' in sources.toml: remove or rename one entry", source.Name)
		}
		seen[source.Name] = true
	}
	return nil
}

func selectUpdateSources(sources []SourceRecord, targetNames []string) ([]SourceRecord, error) {
	if len(targetNames) == 0 {
		out := make([]SourceRecord, len(sources))
		copy(out, sources)
		return out, nil
	}

	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		known[s.Name] = true
	}
	for _, name := range targetNames {
		if !known[name] {
			return nil, fmt.Errorf("source-not-found: source '%s' not found", name)
		}
	}

	targetSet := make(map[string]bool, len(targetNames))
	for _, name := range targetNames {
		targetSet[name] = true
	}
	var out []SourceRecord
	for _, s := range sources {
		if targetSet[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}
