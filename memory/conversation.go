package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by Load for an unknown or malformed thread id.
var ErrNotFound = errors.New("thread not found")

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one content part of a message. Which fields are set depends on Type.
type Block struct {
	Type BlockType `json:"type"`
	Text string    `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Blocks    []Block   `json:"blocks"`
}

// Text joins the message's text blocks.
func (m Message) Text() string {
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type Transcript struct {
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

type Store struct {
	fs  afero.Fs
	dir string
}

func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

func (s *Store) Path(threadID string) string {
	return filepath.Join(s.dir, "threads", threadID+".json")
}

// Create starts an empty transcript with a fresh id and persists it.
func (s *Store) Create() (*Transcript, error) {
	t := &Transcript{ThreadID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := s.Save(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) Load(threadID string) (*Transcript, error) {
	if _, err := uuid.Parse(threadID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, threadID)
	}
	b, err := afero.ReadFile(s.fs, s.Path(threadID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
		}
		return nil, err
	}
	var t Transcript
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode thread %s: %w", threadID, err)
	}
	return &t, nil
}

func (s *Store) Save(t *Transcript) error {
	b, err := json.MarshalIndent(t, "", " ")
	if err != nil {
		return err
	}
	path := s.Path(t.ThreadID)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, b, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, path)
}
