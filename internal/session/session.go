package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/petasbytes/threadchat/internal/dispatch"
	"github.com/petasbytes/threadchat/internal/state"
	"github.com/petasbytes/threadchat/internal/telemetry"
	"github.com/petasbytes/threadchat/internal/threads"
)

const (
	DefaultPollInterval = 500 * time.Millisecond

	cleanupTimeout = 5 * time.Second
)

const (
	noticeReset    = "Thread reset. Starting a new conversation."
	noticeGoodbye  = "Thank you for chatting! Goodbye."
	noticeNewConv  = "Starting a new conversation..."
	noticeNoAnswer = "The assistant finished without a text reply."
)

type Config struct {
	Backend      threads.Backend
	Dispatcher   *dispatch.Dispatcher
	Store        *state.Store
	Display      Display
	Recorder     *telemetry.Recorder
	PollInterval time.Duration
}

// Session owns the conversation handle for the lifetime of the process.
type Session struct {
	backend    threads.Backend
	dispatcher *dispatch.Dispatcher
	store      *state.Store
	display    Display
	rec        *telemetry.Recorder
	interval   time.Duration

	handle string
}

func New(cfg Config) (*Session, error) {
	if cfg.Backend == nil || cfg.Dispatcher == nil || cfg.Store == nil || cfg.Display == nil {
		return nil, errors.New("session: backend, dispatcher, store and display are required")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = telemetry.Nop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Session{
		backend:    cfg.Backend,
		dispatcher: cfg.Dispatcher,
		store:      cfg.Store,
		display:    cfg.Display,
		rec:        cfg.Recorder,
		interval:   cfg.PollInterval,
	}, nil
}

// Handle returns the active thread id, or "" when there is none.
func (s *Session) Handle() string { return s.handle }

// Restore picks up the handle persisted by a previous process.
func (s *Session) Restore() error {
	h, ok, err := s.store.Load()
	if err != nil {
		return err
	}
	if ok {
		s.handle = h
	}
	return nil
}

// Run shows the banner and handles lines until quit, end of input or ctx
// cancellation, all of which end the session normally.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Restore(); err != nil {
		s.rec.Logger(ctx).Warn().Err(err).Msg("ignoring unreadable handle file")
	}
	s.display.Clear()
	s.display.Welcome()
	s.display.Divider()

	for {
		line, err := s.display.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				s.farewell(ctx)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if s.HandleLine(ctx, line) {
			if ctx.Err() != nil {
				s.farewell(ctx)
			}
			return nil
		}
	}
}

// HandleLine processes one line of input and reports whether the session
// should end.
func (s *Session) HandleLine(ctx context.Context, line string) (quit bool) {
	text := strings.TrimSpace(line)
	if text == "" {
		return false
	}
	switch strings.ToLower(text) {
	case "reset":
		s.discardThread(ctx)
		s.display.SystemNotice(noticeReset)
		s.display.Divider()
		return false
	case "quit":
		s.farewell(ctx)
		return true
	}

	ctx = telemetry.WithTurnID(ctx, telemetry.NewTurnID())
	s.rec.Event(ctx, "turn_start", map[string]any{"input_size": len(text), "resumed": s.handle != ""})
	start := time.Now()

	status, err := s.turn(ctx, text)
	if err != nil && ctx.Err() != nil {
		s.rec.Event(ctx, "turn_end", map[string]any{"status": "interrupted", "duration_ms": time.Since(start).Milliseconds()})
		return true
	}
	fields := map[string]any{"status": string(status), "duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		fields["error"] = err.Error()
		s.display.SystemNotice(fmt.Sprintf("An error occurred: %v", err))
		s.display.SystemNotice(noticeNewConv)
		s.discardThread(ctx)
	}
	s.rec.Event(ctx, "turn_end", fields)
	s.display.Divider()
	return false
}

// turn runs Idle → Submitting → Polling for one user message and returns the
// final run status.
func (s *Session) turn(ctx context.Context, text string) (status threads.RunStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.rec.Logger(ctx).Error().Interface("panic", r).Msg("turn panicked")
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if s.handle == "" {
		id, err := s.backend.CreateThread(ctx)
		if err != nil {
			return "", err
		}
		s.handle = id
		if err := s.store.Save(id); err != nil {
			return "", err
		}
		s.rec.Logger(ctx).Info().Str("thread_id", id).Msg("thread created")
	} else {
		s.cancelActiveRuns(ctx, s.handle)
	}

	if _, err := s.backend.CreateMessage(ctx, s.handle, text); err != nil {
		return "", err
	}
	run, err := s.backend.CreateRun(ctx, s.handle)
	if err != nil {
		return "", err
	}

	run, err = s.await(ctx, run)
	if err != nil {
		return run.Status, err
	}

	if run.Status.Aborted() {
		msg := fmt.Sprintf("Run ended with status: %s", run.Status)
		if run.LastError != nil && run.LastError.Message != "" {
			msg += " (" + run.LastError.Message + ")"
		}
		s.display.SystemNotice(msg)
		return run.Status, nil
	}
	return run.Status, s.showReply(ctx, run)
}

// await polls run until it completes or aborts, resolving tool calls on the
// way.
func (s *Session) await(ctx context.Context, run threads.Run) (threads.Run, error) {
	threadID := s.handle
	last := threads.RunStatus("")
	for polls := 0; ; polls++ {
		if polls > 0 {
			if err := s.wait(ctx, s.interval); err != nil {
				return run, err
			}
		}
		var err error
		run, err = s.backend.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return run, err
		}
		if run.Status != last {
			s.rec.Event(ctx, "run_status", map[string]any{"run_id": run.ID, "status": string(run.Status), "polls": polls + 1})
			last = run.Status
		}

		switch {
		case run.Status == threads.StatusCompleted, run.Status.Aborted():
			return run, nil
		case run.Status == threads.StatusRequiresAction:
			if run, err = s.submitTools(ctx, threadID, run); err != nil {
				return run, err
			}
		}
	}
}

func (s *Session) submitTools(ctx context.Context, threadID string, polled threads.Run) (threads.Run, error) {
	first := true
	res, err := s.dispatcher.Resolve(ctx, func(ctx context.Context) ([]threads.ToolCall, error) {
		run := polled
		if !first {
			var err error
			if run, err = s.backend.GetRun(ctx, threadID, polled.ID); err != nil {
				return nil, err
			}
		}
		first = false
		if run.Status != threads.StatusRequiresAction {
			return nil, fmt.Errorf("run %s is %s", run.ID, run.Status)
		}
		if len(run.ToolCalls) == 0 {
			return nil, fmt.Errorf("run %s requires action but lists no tool calls", run.ID)
		}
		return run.ToolCalls, nil
	})
	if err != nil {
		return polled, fmt.Errorf("tool dispatch: %w", err)
	}
	for _, name := range res.Dispatched {
		s.display.ToolUsage(name)
	}
	run, err := s.backend.SubmitToolOutputs(ctx, threadID, polled.ID, res.Outputs)
	if err != nil {
		return polled, err
	}
	return run, nil
}

func (s *Session) showReply(ctx context.Context, run threads.Run) error {
	msgs, err := s.backend.ListMessages(ctx, s.handle)
	if err != nil {
		return err
	}
	var reply, fallback *threads.Message
	for i := range msgs {
		m := &msgs[i]
		if m.Role != threads.RoleAssistant {
			continue
		}
		if fallback == nil {
			fallback = m
		}
		if m.RunID == run.ID {
			reply = m
			break
		}
	}
	if reply == nil {
		reply = fallback
	}
	if reply == nil || strings.TrimSpace(reply.Text) == "" {
		s.display.SystemNotice(noticeNoAnswer)
		return nil
	}
	s.display.AssistantText(reply.Text)
	return nil
}

// cancelActiveRuns cancels queued, in-progress and requires_action runs on
// the thread. Failures are logged and otherwise ignored.
func (s *Session) cancelActiveRuns(ctx context.Context, threadID string) {
	log := s.rec.Logger(ctx)
	runs, err := s.backend.ListRuns(ctx, threadID)
	if err != nil {
		log.Debug().Err(err).Str("thread_id", threadID).Msg("list runs failed")
		return
	}
	cancelled := 0
	for _, r := range runs {
		if !r.Status.Active() {
			continue
		}
		if _, err := s.backend.CancelRun(ctx, threadID, r.ID); err != nil {
			log.Debug().Err(err).Str("run_id", r.ID).Msg("cancel run failed")
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		s.rec.Event(ctx, "runs_cancelled", map[string]any{"thread_id": threadID, "count": cancelled})
	}
}

// discardThread cancels leftover runs and forgets the handle, in memory and
// on disk.
func (s *Session) discardThread(ctx context.Context) {
	if s.handle != "" {
		ctx, cancel := cleanupContext(ctx)
		s.cancelActiveRuns(ctx, s.handle)
		cancel()
	}
	s.handle = ""
	if err := s.store.Clear(); err != nil {
		s.rec.Logger(ctx).Warn().Err(err).Msg("clear handle file")
	}
}

func (s *Session) farewell(ctx context.Context) {
	if s.handle != "" {
		ctx, cancel := cleanupContext(ctx)
		s.cancelActiveRuns(ctx, s.handle)
		cancel()
	}
	s.display.SystemNotice(noticeGoodbye)
}

// cleanupContext detaches best-effort cleanup from an interrupted parent.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// wait pauses between polls; it returns early with ctx.Err() when ctx ends.
func (s *Session) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
