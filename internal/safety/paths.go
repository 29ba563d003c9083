// Package safety confines tool file access to a single sandbox root.
package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Error codes carried by ToolError.
const (
	CodeOutsideSandbox = "ERR_PATH_OUTSIDE_SANDBOX"
	CodeNotAFile       = "ERR_NOT_A_FILE"
	CodeInvalidPath    = "ERR_INVALID_PATH"
)

// ToolError is a machine-readable policy error. Tool outputs embed it verbatim so
// the model sees the code.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep tool outputs small.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// ResolveRoot makes root absolute and resolves symlinks when the directory exists.
// An empty root resolves to the working directory.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("abs(%s): %w", root, err)
	}
	// Resolving here keeps later boundary checks honest on systems where the
	// temp dir itself is a symlink (macOS /var -> /private/var).
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return abs, nil
}

// Checker validates relative paths against an absolute Root.
type Checker struct {
	Root string
	// EvalSymlinks resolves links before the boundary check. Nil means lexical
	// checks only, which is what non-OS filesystems need.
	EvalSymlinks func(string) (string, error)
	// Lstat detects dangling links among missing components. Optional.
	Lstat func(string) (os.FileInfo, error)
}

// NewOSChecker returns a Checker that follows symlinks on the host filesystem.
func NewOSChecker(root string) Checker {
	return Checker{Root: root, EvalSymlinks: filepath.EvalSymlinks, Lstat: os.Lstat}
}

// ReadPath resolves relPath under Root. It rejects absolute inputs, parent
// traversal and symlink escapes with ERR_PATH_OUTSIDE_SANDBOX.
func (c Checker) ReadPath(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", ToolError{Code: CodeOutsideSandbox, Message: "absolute paths are not allowed"}
	}

	cleaned := filepath.Clean(relPath)
	candidate := filepath.Join(c.Root, cleaned)

	if !c.inside(candidate) {
		return "", errOutside
	}
	if c.EvalSymlinks != nil {
		resolved, err := c.resolve(candidate)
		if err != nil {
			return "", err
		}
		candidate = resolved
	}
	if !c.inside(candidate) {
		return "", errOutside
	}
	return candidate, nil
}

var errOutside = ToolError{Code: CodeOutsideSandbox, Message: "requested path resolves outside the sandbox root"}

func (c Checker) inside(p string) bool {
	rel, err := filepath.Rel(c.Root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// resolve follows links on the deepest existing ancestor of p and rejoins the
// missing tail, so a link anywhere along the path is seen before any
// directory gets created through it.
func (c Checker) resolve(p string) (string, error) {
	var tail []string
	for cur := p; ; {
		if resolved, err := c.EvalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		// A component that exists but cannot be resolved is a dangling link;
		// writing through it would create its target.
		if c.Lstat != nil {
			if fi, err := c.Lstat(cur); err == nil && fi.Mode()&os.ModeSymlink != 0 {
				return "", ToolError{Code: CodeOutsideSandbox, Message: "path contains an unresolvable symlink"}
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

// WritePath is ReadPath plus a refusal to target the root itself.
func (c Checker) WritePath(relPath string) (string, error) {
	if strings.TrimSpace(relPath) == "" {
		return "", ToolError{Code: CodeInvalidPath, Message: "file path is required"}
	}
	abs, err := c.ReadPath(relPath)
	if err != nil {
		return "", err
	}
	if rel, _ := filepath.Rel(c.Root, abs); rel == "." {
		return "", ToolError{Code: CodeInvalidPath, Message: "cannot write to the sandbox root"}
	}
	return abs, nil
}
