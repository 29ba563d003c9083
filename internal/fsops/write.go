package fsops

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// Write creates or truncates a file under the root, creating parent
// directories inside the sandbox as needed.
func (s *Sandbox) Write(relPath, content string) error {
	if _, err := s.Root(); err != nil {
		return err
	}
	absPath, err := s.checker.WritePath(relPath)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, absPath, []byte(content), 0o644)
}
