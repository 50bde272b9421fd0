// Package keys stores the Gemini API key in keys.json under the user
// config directory, with restricted file permissions.
package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anhtn/giaoan/internal/config"
)

const (
	fileName = "keys.json"
	provider = "gemini"
	envVar   = "GEMINI_API_KEY"
)

type entry struct {
	Key string `json:"key"`
}

// Store reads and writes keys.json. The file is keyed by provider name so
// additional backends can share it later.
type Store struct {
	dir string
}

func NewStore() (*Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, fileName)
}

func (s *Store) load() (map[string]entry, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]entry{}, nil
		}
		return nil, err
	}

	var keys map[string]entry
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}
	return keys, nil
}

func (s *Store) save(keys map[string]entry) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	return nil
}

func (s *Store) Set(key string) error {
	keys, err := s.load()
	if err != nil {
		return err
	}
	keys[provider] = entry{Key: key}
	return s.save(keys)
}

// Get returns the stored key, or empty when none is stored.
func (s *Store) Get() (string, error) {
	keys, err := s.load()
	if err != nil {
		return "", err
	}
	return keys[provider].Key, nil
}

func (s *Store) Delete() error {
	keys, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := keys[provider]; !ok {
		return fmt.Errorf("no stored key for %s", provider)
	}
	delete(keys, provider)
	return s.save(keys)
}

// Mask hides the middle of a key for display.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Resolve picks the API key by priority: the explicit flag value, then the
// GEMINI_API_KEY environment variable, then keys.json. The second return
// names the source for diagnostics.
func Resolve(explicit string) (string, string, error) {
	if explicit != "" {
		return explicit, "command-line flag", nil
	}
	if key := os.Getenv(envVar); key != "" {
		return key, envVar, nil
	}

	store, err := NewStore()
	if err != nil {
		return "", "", err
	}
	key, err := store.Get()
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", nil
	}
	return key, store.Path(), nil
}
