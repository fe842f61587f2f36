// Package script persists the user's working script text between runs.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultText is shown until the user writes something.
const DefaultText = "Enter your script here..."

const fileName = "script.txt"

// Store reads and writes the script file under a config directory.
type Store struct {
	dir string
}

// NewStore uses dir as the storage location, creating it on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, fileName)
}

// Load returns the saved script, or DefaultText when nothing was saved yet.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return DefaultText, nil
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}

// Save writes the script. Saving empty text resets to the default.
func (s *Store) Save(text string) error {
	if strings.TrimSpace(text) == "" {
		if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reset script: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(s.path(), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}
