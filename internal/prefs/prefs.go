// Package prefs persists small per-session preferences such as the theme.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ThemeKey is the preference slot holding "dark" or "light".
const ThemeKey = "theme"

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ErrInvalidTheme is returned when a stored or requested theme is not dark/light.
var ErrInvalidTheme = errors.New("invalid theme")

// Store is a durable string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// ValidTheme reports whether v is a known theme.
func ValidTheme(v string) bool {
	return v == ThemeDark || v == ThemeLight
}

// LoadTheme reads the theme slot, falling back to dark when it is empty or invalid.
func LoadTheme(ctx context.Context, s Store) (string, error) {
	v, ok, err := s.Get(ctx, ThemeKey)
	if err != nil {
		return ThemeDark, err
	}
	if !ok || !ValidTheme(v) {
		return ThemeDark, nil
	}
	return v, nil
}

// SaveTheme writes the theme slot.
func SaveTheme(ctx context.Context, s Store, theme string) error {
	if !ValidTheme(theme) {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	return s.Set(ctx, ThemeKey, theme)
}

// Scoped prefixes every key with a namespace, so one backing store can hold
// the preferences of many sessions.
type Scoped struct {
	Store     Store
	Namespace string
}

func (s Scoped) key(k string) string {
	return s.Namespace + "/" + k
}

// Get implements Store.
func (s Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.Store.Get(ctx, s.key(key))
}

// Set implements Store.
func (s Scoped) Set(ctx context.Context, key, value string) error {
	return s.Store.Set(ctx, s.key(key), value)
}

// FileStore keeps preferences in a JSON file under the data directory.
type FileStore struct {
	dataDir string
	values  map[string]string
	mu      sync.RWMutex
}

// NewFileStore creates a file-backed store and loads any existing values.
func NewFileStore(dataDir string) *FileStore {
	s := &FileStore{
		dataDir: dataDir,
		values:  make(map[string]string),
	}
	s.loadFromDisk()
	return s
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.saveToDisk()
}

// configFile returns the path to the preferences file.
func (s *FileStore) configFile() string {
	return filepath.Join(s.dataDir, "prefs.json")
}

// loadFromDisk loads preferences from disk.
func (s *FileStore) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, start empty
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil || values == nil {
		return // Invalid JSON, start empty
	}

	s.values = values
}

// saveToDisk persists preferences to disk.
func (s *FileStore) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configFile(), data, 0644)
}

// MemoryStore is a non-durable Store for tests and the CLI.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
