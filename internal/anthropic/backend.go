// Package anthropic implements threads.Backend on top of the Anthropic
// Messages API. Threads are transcripts kept on disk by the memory package.
// Runs live only in this process: a queued run makes one Messages call the
// next time it is polled.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/petasbytes/threadchat/internal/telemetry"
	"github.com/petasbytes/threadchat/internal/threads"
	"github.com/petasbytes/threadchat/internal/windowing"
	"github.com/petasbytes/threadchat/memory"
	"github.com/petasbytes/threadchat/tools"
)

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest

// Output recorded for a tool call that never received one.
const missingOutput = "No output was submitted for this tool call."

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	Model        anthropic.Model
	MaxTokens    int64
	Instructions string
	Tools        []tools.ToolDefinition
}

type Backend struct {
	client      *anthropic.Client
	opts        Options
	transcripts *memory.Store
	window      *windowing.Window
	rec         *telemetry.Recorder

	mu   sync.Mutex
	runs map[string]*runState
	seq  int
}

type runState struct {
	run threads.Run
	seq int
}

var _ threads.Backend = (*Backend)(nil)

func New(client *anthropic.Client, transcripts *memory.Store, window *windowing.Window, rec *telemetry.Recorder, opts Options) *Backend {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if rec == nil {
		rec = telemetry.Nop()
	}
	return &Backend{
		client:      client,
		opts:        opts,
		transcripts: transcripts,
		window:      window,
		rec:         rec,
		runs:        make(map[string]*runState),
	}
}

func (b *Backend) CreateThread(ctx context.Context) (string, error) {
	t, err := b.transcripts.Create()
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return t.ThreadID, nil
}

func (b *Backend) CreateMessage(ctx context.Context, threadID, text string) (threads.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.transcripts.Load(threadID)
	if err != nil {
		return threads.Message{}, fmt.Errorf("create message: %w", err)
	}
	// A process that died mid tool call leaves unanswered tool_use blocks.
	closeDangling(t, "")
	m := memory.Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      string(threads.RoleUser),
		CreatedAt: time.Now().UTC(),
		Blocks:    []memory.Block{{Type: memory.BlockText, Text: text}},
	}
	t.Messages = append(t.Messages, m)
	if err := b.transcripts.Save(t); err != nil {
		return threads.Message{}, fmt.Errorf("create message: %w", err)
	}
	return toThreadMessage(m), nil
}

func (b *Backend) CreateRun(ctx context.Context, threadID string) (threads.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.transcripts.Load(threadID); err != nil {
		return threads.Run{}, fmt.Errorf("create run: %w", err)
	}
	b.seq++
	st := &runState{
		run: threads.Run{ID: "run_" + uuid.NewString(), ThreadID: threadID, Status: threads.StatusQueued},
		seq: b.seq,
	}
	b.runs[st.run.ID] = st
	return st.run, nil
}

// GetRun advances a queued run by one model call before reporting it.
func (b *Backend) GetRun(ctx context.Context, threadID, runID string) (threads.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.lookup(threadID, runID)
	if err != nil {
		return threads.Run{}, err
	}
	if st.run.Status == threads.StatusQueued {
		st.run.Status = threads.StatusInProgress
		if err := b.step(ctx, st); err != nil {
			st.run.Status = threads.StatusQueued
			return threads.Run{}, err
		}
	}
	return st.run, nil
}

func (b *Backend) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []threads.ToolOutput) (threads.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.lookup(threadID, runID)
	if err != nil {
		return threads.Run{}, err
	}
	if st.run.Status != threads.StatusRequiresAction {
		return threads.Run{}, fmt.Errorf("submit tool outputs: run %s is %s", runID, st.run.Status)
	}

	pending := make(map[string]bool, len(st.run.ToolCalls))
	for _, call := range st.run.ToolCalls {
		pending[call.ID] = true
	}
	byID := make(map[string]string, len(outputs))
	for _, o := range outputs {
		if !pending[o.ToolCallID] {
			return threads.Run{}, fmt.Errorf("submit tool outputs: unknown tool call %q", o.ToolCallID)
		}
		byID[o.ToolCallID] = o.Output
	}
	// Every tool_use needs a result, including calls the client skipped.
	blocks := make([]memory.Block, 0, len(st.run.ToolCalls))
	for _, call := range st.run.ToolCalls {
		out, ok := byID[call.ID]
		blk := memory.Block{Type: memory.BlockToolResult, ToolUseID: call.ID, Content: out}
		if !ok {
			blk.Content, blk.IsError = missingOutput, true
		}
		blocks = append(blocks, blk)
	}

	t, err := b.transcripts.Load(threadID)
	if err != nil {
		return threads.Run{}, fmt.Errorf("submit tool outputs: %w", err)
	}
	t.Messages = append(t.Messages, memory.Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      string(threads.RoleUser),
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Blocks:    blocks,
	})
	if err := b.transcripts.Save(t); err != nil {
		return threads.Run{}, fmt.Errorf("submit tool outputs: %w", err)
	}
	st.run.Status = threads.StatusQueued
	st.run.ToolCalls = nil
	return st.run, nil
}

// ListRuns returns this process's runs on the thread, newest first.
func (b *Backend) ListRuns(ctx context.Context, threadID string) ([]threads.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var states []*runState
	for _, st := range b.runs {
		if st.run.ThreadID == threadID {
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].seq > states[j].seq })
	out := make([]threads.Run, len(states))
	for i, st := range states {
		out[i] = st.run
	}
	return out, nil
}

func (b *Backend) CancelRun(ctx context.Context, threadID, runID string) (threads.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.lookup(threadID, runID)
	if err != nil {
		return threads.Run{}, err
	}
	if !st.run.Status.Active() {
		return threads.Run{}, fmt.Errorf("cancel run %s: status is %s", runID, st.run.Status)
	}
	if st.run.Status == threads.StatusRequiresAction {
		t, err := b.transcripts.Load(threadID)
		if err != nil {
			return threads.Run{}, fmt.Errorf("cancel run %s: %w", runID, err)
		}
		if closeDangling(t, runID) {
			if err := b.transcripts.Save(t); err != nil {
				return threads.Run{}, fmt.Errorf("cancel run %s: %w", runID, err)
			}
		}
	}
	st.run.Status = threads.StatusCancelled
	st.run.ToolCalls = nil
	return st.run, nil
}

func (b *Backend) ListMessages(ctx context.Context, threadID string) ([]threads.Message, error) {
	t, err := b.transcripts.Load(threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]threads.Message, 0, len(t.Messages))
	for i := len(t.Messages) - 1; i >= 0; i-- {
		m := t.Messages[i]
		if m.Role == string(threads.RoleUser) && m.Text() == "" {
			continue // tool results only
		}
		out = append(out, toThreadMessage(m))
	}
	return out, nil
}

func (b *Backend) lookup(threadID, runID string) (*runState, error) {
	st, ok := b.runs[runID]
	if !ok || st.run.ThreadID != threadID {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return st, nil
}

// step sends the windowed transcript to the model and records the reply.
// Model errors fail the run; only local errors are returned.
func (b *Backend) step(ctx context.Context, st *runState) error {
	t, err := b.transcripts.Load(st.run.ThreadID)
	if err != nil {
		return fmt.Errorf("retrieve run %s: %w", st.run.ID, err)
	}

	window, stats := b.window.Prepare(toParams(t.Messages))
	b.rec.Event(ctx, "window_prepared", map[string]any{
		"model":              string(b.opts.Model),
		"budget":             stats.Budget,
		"total_estimated":    stats.Total,
		"included_groups":    stats.IncludedGroups,
		"skipped_groups":     stats.SkippedGroups,
		"dropped_leading":    stats.DroppedLeading,
		"over_budget_newest": stats.OverBudgetNewest,
	})
	if len(window) == 0 {
		b.fail(st, "context_length_exceeded", "the latest message does not fit the configured token budget")
		return nil
	}

	params := anthropic.MessageNewParams{
		Model:     b.opts.Model,
		MaxTokens: b.opts.MaxTokens,
		Messages:  window,
		Tools:     toolParams(b.opts.Tools),
	}
	if b.opts.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: b.opts.Instructions}}
	}

	finish := b.rec.StartSpan(ctx, "messages_new", map[string]any{"run_id": st.run.ID})
	resp, err := b.client.Messages.New(ctx, params)
	finish(err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code := "api_error"
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			code = fmt.Sprintf("http_%d", apiErr.StatusCode)
		}
		b.fail(st, code, err.Error())
		return nil
	}

	reply := memory.Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      string(threads.RoleAssistant),
		RunID:     st.run.ID,
		CreatedAt: time.Now().UTC(),
	}
	var calls []threads.ToolCall
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Blocks = append(reply.Blocks, memory.Block{Type: memory.BlockText, Text: v.Text})
		case anthropic.ToolUseBlock:
			input := json.RawMessage(v.JSON.Input.Raw())
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			reply.Blocks = append(reply.Blocks, memory.Block{Type: memory.BlockToolUse, ID: v.ID, Name: v.Name, Input: input})
			calls = append(calls, threads.ToolCall{ID: v.ID, Name: v.Name, Arguments: string(input)})
		}
	}

	if len(reply.Blocks) > 0 {
		t.Messages = append(t.Messages, reply)
		if err := b.transcripts.Save(t); err != nil {
			return fmt.Errorf("retrieve run %s: %w", st.run.ID, err)
		}
	}
	if len(calls) > 0 {
		st.run.Status = threads.StatusRequiresAction
		st.run.ToolCalls = calls
		return nil
	}
	st.run.Status = threads.StatusCompleted
	return nil
}

func (b *Backend) fail(st *runState, code, message string) {
	st.run.Status = threads.StatusFailed
	st.run.LastError = &threads.RunError{Code: code, Message: message}
}

// closeDangling answers unanswered tool_use blocks of a trailing assistant
// message with error results. It reports whether t changed.
func closeDangling(t *memory.Transcript, runID string) bool {
	if len(t.Messages) == 0 {
		return false
	}
	last := t.Messages[len(t.Messages)-1]
	if last.Role != string(threads.RoleAssistant) {
		return false
	}
	var blocks []memory.Block
	for _, blk := range last.Blocks {
		if blk.Type == memory.BlockToolUse {
			blocks = append(blocks, memory.Block{
				Type: memory.BlockToolResult, ToolUseID: blk.ID, Content: "Run cancelled before the tool output was submitted.", IsError: true,
			})
		}
	}
	if len(blocks) == 0 {
		return false
	}
	t.Messages = append(t.Messages, memory.Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      string(threads.RoleUser),
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Blocks:    blocks,
	})
	return true
}
