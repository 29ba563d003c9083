// Package threads describes the remote conversation protocol: a thread holds
// messages, and each run generates the next assistant turn, pausing with
// requires_action whenever it needs tool outputs.
package threads

import (
	"context"
	"time"
)

type RunStatus string

const (
	StatusQueued         RunStatus = "queued"
	StatusInProgress     RunStatus = "in_progress"
	StatusRequiresAction RunStatus = "requires_action"
	StatusCancelling     RunStatus = "cancelling"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusCancelled      RunStatus = "cancelled"
	StatusExpired        RunStatus = "expired"
	StatusIncomplete     RunStatus = "incomplete"
)

// Active reports whether a leftover run of this status should be cancelled
// before a new one starts.
func (s RunStatus) Active() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusRequiresAction:
		return true
	}
	return false
}

// Aborted reports whether the run ended without producing a reply.
func (s RunStatus) Aborted() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusExpired, StatusIncomplete:
		return true
	}
	return false
}

// RunError is the reason attached to a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	ToolCalls []ToolCall // set while Status is requires_action
	LastError *RunError
}

// ToolCall is one tool invocation requested by a run. Arguments is the raw
// JSON object as sent by the remote side.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput answers the ToolCall with the same ID.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string
	Role      Role
	Text      string
	RunID     string
	CreatedAt time.Time
}

// Backend is the remote side of a conversation.
type Backend interface {
	CreateThread(ctx context.Context) (string, error)
	CreateMessage(ctx context.Context, threadID, text string) (Message, error)
	CreateRun(ctx context.Context, threadID string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error)
	ListRuns(ctx context.Context, threadID string) ([]Run, error)
	CancelRun(ctx context.Context, threadID, runID string) (Run, error)
	// ListMessages returns the thread's messages newest first.
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}
