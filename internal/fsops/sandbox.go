// Package fsops performs file operations confined to a single sandbox root.
package fsops

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/petasbytes/threadchat/internal/safety"
)

// Sandbox owns one root directory on an afero filesystem. The root is created
// lazily on first use and its resolution is cached for the Sandbox lifetime.
type Sandbox struct {
	fs   afero.Fs
	root string

	once    sync.Once
	checker safety.Checker
	rootErr error
}

// New returns a Sandbox rooted at root on fs. Nothing touches the filesystem
// until the first operation.
func New(fs afero.Fs, root string) *Sandbox {
	return &Sandbox{fs: fs, root: root}
}

// NewOS returns a Sandbox on the host filesystem.
func NewOS(root string) *Sandbox {
	return New(afero.NewOsFs(), root)
}

// Root ensures the sandbox directory exists and returns its resolved path.
// Safe to call any number of times.
func (s *Sandbox) Root() (string, error) {
	s.once.Do(s.initRoot)
	return s.checker.Root, s.rootErr
}

func (s *Sandbox) initRoot() {
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		s.rootErr = fmt.Errorf("create sandbox root %s: %w", s.root, err)
		return
	}
	if _, ok := s.fs.(*afero.OsFs); ok {
		abs, err := safety.ResolveRoot(s.root)
		if err != nil {
			s.rootErr = err
			return
		}
		s.checker = safety.NewOSChecker(abs)
		return
	}
	// In-memory filesystems have no host symlinks to follow.
	s.checker = safety.Checker{Root: s.root}
}
