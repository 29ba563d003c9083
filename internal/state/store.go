// Package state persists the active conversation handle so a restarted
// process can resume the same thread.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

// DefaultPath is the well-known location of the handle file, relative to the
// working directory.
const DefaultPath = "thread_id.txt"

// Store keeps a single handle in a single text file.
type Store struct {
	fs   afero.Fs
	path string
}

func New(fsys afero.Fs, path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{fs: fsys, path: path}
}

// NewOS returns a Store on the host filesystem.
func NewOS(path string) *Store {
	return New(afero.NewOsFs(), path)
}

func (s *Store) Path() string { return s.path }

// Load returns the persisted handle. A missing or blank file yields ok=false
// and no error.
func (s *Store) Load() (handle string, ok bool, err error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load handle: %w", err)
	}
	handle = strings.TrimSpace(string(b))
	if handle == "" {
		return "", false, nil
	}
	return handle, true, nil
}

// Save overwrites the file with the raw handle.
func (s *Store) Save(handle string) error {
	if err := afero.WriteFile(s.fs, s.path, []byte(handle), 0o644); err != nil {
		return fmt.Errorf("save handle: %w", err)
	}
	return nil
}

// Clear removes the file. Clearing an absent file is a no-op.
func (s *Store) Clear() error {
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear handle: %w", err)
	}
	return nil
}
