package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/aiwargamer/sitroom/internal/metrics"
	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/validation"
)

var (
	// ErrNotFound is returned by Load when no cache file has been written yet.
	ErrNotFound = errors.New("report cache not found")

	// ErrKeyNotFound is returned when a key is not present in the cache.
	ErrKeyNotFound = errors.New("key not found in report cache")

	// ErrInvalidUTF8 is returned when a key or value is not valid UTF-8 and
	// would not survive a round trip through the JSON file.
	ErrInvalidUTF8 = errors.New("cache entry is not valid UTF-8")
)

// IOError reports a cache file that exists but could not be read, parsed or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("report cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Store persists the report cache as a single flat JSON object of key to markdown.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the file at path. The file need not exist.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole mapping. It returns ErrNotFound when the file does not
// exist and an *IOError when it exists but is unreadable or malformed.
func (s *Store) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &IOError{Op: "read", Path: s.path, Err: err}
	}

	if errs := validation.ValidateCacheBytes(data); len(errs) > 0 {
		return nil, &IOError{Op: "parse", Path: s.path, Err: errors.New(strings.Join(errs, "; "))}
	}

	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &IOError{Op: "parse", Path: s.path, Err: err}
	}
	return entries, nil
}

// Save replaces the whole mapping. The content is written to a temporary file
// in the same directory and renamed over the target, so readers see either the
// old or the new mapping.
func (s *Store) Save(entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.save(entries)
	metrics.RecordCacheWrite("save", err == nil)
	return err
}

func (s *Store) save(entries map[string]string) error {
	if entries == nil {
		entries = map[string]string{}
	}
	// encoding/json would silently replace invalid bytes with U+FFFD.
	for k, v := range entries {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return &IOError{Op: "write", Path: s.path, Err: fmt.Errorf("%w: %q", ErrInvalidUTF8, k)}
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: fmt.Errorf("creating cache directory: %w", err)}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &IOError{Op: "write", Path: s.path, Err: fmt.Errorf("marshaling cache: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// Get returns the value stored for key. The key may be given in display form
// ("briefing_Red Teamer") or canonical form ("briefing_Red_Teamer").
func (s *Store) Get(key string) (string, error) {
	entries, err := s.Load()
	if err != nil {
		return "", err
	}
	if v, ok := Lookup(entries, key); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
}

// Edit overwrites a single key and saves the mapping. Every other entry is
// written back unchanged. A missing cache file is treated as an empty mapping.
func (s *Store) Edit(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if errors.Is(err, ErrNotFound) {
		entries = map[string]string{}
	} else if err != nil {
		metrics.RecordCacheWrite("edit", false)
		return err
	}

	entries[resolveKey(entries, key)] = value
	err = s.save(entries)
	metrics.RecordCacheWrite("edit", err == nil)
	return err
}

// Merge writes every entry of updates into the stored mapping, leaving other
// keys untouched. It returns the merged mapping.
func (s *Store) Merge(updates map[string]string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if errors.Is(err, ErrNotFound) {
		entries = map[string]string{}
	} else if err != nil {
		metrics.RecordCacheWrite("merge", false)
		return nil, err
	}

	for k, v := range updates {
		entries[resolveKey(entries, k)] = v
	}
	err = s.save(entries)
	metrics.RecordCacheWrite("merge", err == nil)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete removes one key and saves the mapping.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	k := resolveKey(entries, key)
	if _, ok := entries[k]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	delete(entries, k)
	err = s.save(entries)
	metrics.RecordCacheWrite("delete", err == nil)
	return err
}

// Clear removes the cache file. It refuses to remove anything that is not a
// report cache: a directory, or a file that does not parse as one.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &IOError{Op: "clear", Path: s.path, Err: err}
	}
	if info.IsDir() {
		return fmt.Errorf("cache path %s is a directory - refusing to delete for safety", s.path)
	}
	if filepath.Ext(s.path) != ".json" {
		return fmt.Errorf("cache path %s is not a .json file - refusing to delete for safety", s.path)
	}
	if _, err := s.load(); err != nil {
		return fmt.Errorf("cache file does not look like a report cache - refusing to delete for safety: %w", err)
	}

	err = os.Remove(s.path)
	metrics.RecordCacheWrite("clear", err == nil)
	if err != nil {
		return &IOError{Op: "clear", Path: s.path, Err: err}
	}
	return nil
}

// Keys returns the mapping's keys in sorted order.
func Keys(entries map[string]string) []string {
	return slices.Sorted(maps.Keys(entries))
}

// Lookup finds key in entries, accepting either the canonical cache key or the
// display form with spaces in the name.
func Lookup(entries map[string]string, key string) (string, bool) {
	if v, ok := entries[key]; ok {
		return v, true
	}
	if v, ok := entries[resolveKey(entries, key)]; ok {
		return v, true
	}
	return "", false
}

// resolveKey maps key onto the spelling already present in entries, so an edit
// of "briefing_Red Teamer" updates a stored "briefing_Red_Teamer" (or the reverse)
// instead of adding a second entry. Unknown keys are returned in canonical form.
func resolveKey(entries map[string]string, key string) string {
	if _, ok := entries[key]; ok {
		return key
	}

	id, err := models.ParseCacheKey(strings.TrimSpace(key))
	if err != nil {
		return key
	}
	canonical := id.CacheKey()
	if _, ok := entries[canonical]; ok {
		return canonical
	}
	for existing := range entries {
		if other, err := models.ParseCacheKey(existing); err == nil && other.CacheKey() == canonical {
			return existing
		}
	}
	return canonical
}
