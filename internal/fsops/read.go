package fsops

import (
	"github.com/spf13/afero"

	"github.com/petasbytes/threadchat/internal/safety"
)

// Read returns the content of a file addressed by a path relative to the root.
func (s *Sandbox) Read(relPath string) (string, error) {
	if _, err := s.Root(); err != nil {
		return "", err
	}
	absPath, err := s.checker.ReadPath(relPath)
	if err != nil {
		return "", err
	}

	fi, err := s.fs.Stat(absPath)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", safety.ToolError{Code: safety.CodeNotAFile, Message: "path is a directory"}
	}

	b, err := afero.ReadFile(s.fs, absPath)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
