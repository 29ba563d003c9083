package session_test

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/petasbytes/threadchat/internal/threads"
)

// fakeBackend scripts GetRun results and records every call.
type fakeBackend struct {
	mu sync.Mutex

	// polls is consumed by successive GetRun calls; the last entry repeats.
	polls []threads.Run
	// messages is returned by ListMessages; nil means one assistant reply
	// from the latest run.
	messages []threads.Message
	reply    string
	runs     []threads.Run
	errs     map[string]error
	onGetRun func(n int)
	panicOn  string

	threadSeq int
	runSeq    int
	getRuns   int
	lastRun   string
	calls     []string
	texts     []string
	submitted [][]threads.ToolOutput
	cancelled []string
}

func (f *fakeBackend) enter(method string) error {
	f.calls = append(f.calls, method)
	if f.panicOn == method {
		panic("backend exploded")
	}
	return f.errs[method]
}

func (f *fakeBackend) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateThread"); err != nil {
		return "", err
	}
	f.threadSeq++
	return fmt.Sprintf("thread_%d", f.threadSeq), nil
}

func (f *fakeBackend) CreateMessage(ctx context.Context, threadID, text string) (threads.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateMessage"); err != nil {
		return threads.Message{}, err
	}
	f.texts = append(f.texts, text)
	return threads.Message{ID: "msg_user", Role: threads.RoleUser, Text: text}, nil
}

func (f *fakeBackend) CreateRun(ctx context.Context, threadID string) (threads.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateRun"); err != nil {
		return threads.Run{}, err
	}
	f.runSeq++
	f.lastRun = fmt.Sprintf("run_%d", f.runSeq)
	return threads.Run{ID: f.lastRun, ThreadID: threadID, Status: threads.StatusQueued}, nil
}

func (f *fakeBackend) GetRun(ctx context.Context, threadID, runID string) (threads.Run, error) {
	f.mu.Lock()
	if err := f.enter("GetRun"); err != nil {
		f.mu.Unlock()
		return threads.Run{}, err
	}
	f.getRuns++
	n := f.getRuns
	run := threads.Run{Status: threads.StatusCompleted}
	if len(f.polls) > 0 {
		run = f.polls[0]
		if len(f.polls) > 1 {
			f.polls = f.polls[1:]
		}
	}
	hook := f.onGetRun
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	run.ID, run.ThreadID = runID, threadID
	return run, nil
}

func (f *fakeBackend) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []threads.ToolOutput) (threads.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SubmitToolOutputs"); err != nil {
		return threads.Run{}, err
	}
	f.submitted = append(f.submitted, outputs)
	return threads.Run{ID: runID, ThreadID: threadID, Status: threads.StatusQueued}, nil
}

func (f *fakeBackend) ListRuns(ctx context.Context, threadID string) ([]threads.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListRuns"); err != nil {
		return nil, err
	}
	return f.runs, nil
}

func (f *fakeBackend) CancelRun(ctx context.Context, threadID, runID string) (threads.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CancelRun"); err != nil {
		return threads.Run{}, err
	}
	f.cancelled = append(f.cancelled, runID)
	return threads.Run{ID: runID, ThreadID: threadID, Status: threads.StatusCancelling}, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, threadID string) ([]threads.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListMessages"); err != nil {
		return nil, err
	}
	if f.messages != nil {
		return f.messages, nil
	}
	return []threads.Message{
		{ID: "msg_reply", Role: threads.RoleAssistant, Text: f.reply, RunID: f.lastRun},
		{ID: "msg_user", Role: threads.RoleUser, Text: "question"},
	}, nil
}

func (f *fakeBackend) count(method string) int {
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// fakeDisplay records output as "kind:text" strings and serves scripted input.
type fakeDisplay struct {
	lines  []string
	events []string
}

func (d *fakeDisplay) Welcome()                  { d.events = append(d.events, "welcome") }
func (d *fakeDisplay) Clear()                    { d.events = append(d.events, "clear") }
func (d *fakeDisplay) Divider()                  { d.events = append(d.events, "divider") }
func (d *fakeDisplay) AssistantText(text string) { d.events = append(d.events, "assistant:"+text) }
func (d *fakeDisplay) SystemNotice(text string)  { d.events = append(d.events, "notice:"+text) }
func (d *fakeDisplay) ToolUsage(name string)     { d.events = append(d.events, "tool:"+name) }

func (d *fakeDisplay) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(d.lines) == 0 {
		return "", io.EOF
	}
	line := d.lines[0]
	d.lines = d.lines[1:]
	return line, nil
}
