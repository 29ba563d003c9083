package fsops

import (
	"encoding/json"
	"sort"

	"github.com/spf13/afero"
)

// List returns the direct entries of the root (non-recursive) as a JSON array
// of names, sorted so output is stable across filesystems.
func (s *Sandbox) List() (string, error) {
	root, err := s.Root()
	if err != nil {
		return "", err
	}

	entries, err := afero.ReadDir(s.fs, root)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	b, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
