package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	anthropicbackend "github.com/petasbytes/threadchat/internal/anthropic"
	"github.com/petasbytes/threadchat/internal/config"
	"github.com/petasbytes/threadchat/internal/dispatch"
	"github.com/petasbytes/threadchat/internal/display"
	"github.com/petasbytes/threadchat/internal/fsops"
	"github.com/petasbytes/threadchat/internal/openai"
	"github.com/petasbytes/threadchat/internal/session"
	"github.com/petasbytes/threadchat/internal/state"
	"github.com/petasbytes/threadchat/internal/telemetry"
	"github.com/petasbytes/threadchat/internal/threads"
	"github.com/petasbytes/threadchat/internal/windowing"
	"github.com/petasbytes/threadchat/memory"
	"github.com/petasbytes/threadchat/tools"
)

func main() {
	// Set up graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	os.Exit(exitCode(ctx, err, os.Stderr))
}

// exitCode reports err and maps it to the process status. An interrupt is a
// normal exit even when it cut initialization short.
func exitCode(ctx context.Context, err error, stderr io.Writer) int {
	if err == nil || ctx.Err() != nil {
		return 0
	}
	fmt.Fprintf(stderr, "threadchat: %v\n", err)
	return 1
}

func run(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(os.Getenv("THREADCHAT_CONFIG"))
	if err != nil {
		return err
	}
	if err := cfg.CheckCredentials(); err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			return fmt.Errorf("%w; export the API key for the %q backend or add it to .env", err, cfg.Backend)
		}
		return err
	}

	logger, closeLog, err := telemetry.NewLogger(telemetry.LogOptions{
		Dir:     cfg.State.Dir,
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
	})
	if err != nil {
		return err
	}
	defer closeLog()
	rec := telemetry.New(logger)

	sandbox := fsops.NewOS(cfg.Sandbox.Root)
	defs := tools.Registry(sandbox)
	dispatcher, err := dispatch.New(defs, dispatch.Options{
		Attempts:    cfg.Dispatch.Attempts,
		BackoffBase: cfg.Dispatch.BackoffBase,
		BackoffCap:  cfg.Dispatch.BackoffCap,
	}, rec)
	if err != nil {
		return err
	}

	backend, err := newBackend(ctx, cfg, defs, logger, rec)
	if err != nil {
		return err
	}

	sess, err := session.New(session.Config{
		Backend:      backend,
		Dispatcher:   dispatcher,
		Store:        state.NewOS(cfg.State.File),
		Display:      display.NewTerminal(),
		Recorder:     rec,
		PollInterval: cfg.Poll.Interval,
	})
	if err != nil {
		return err
	}
	logger.Info().Str("backend", cfg.Backend).Str("sandbox", cfg.Sandbox.Root).Msg("session starting")
	return sess.Run(ctx)
}

func newBackend(ctx context.Context, cfg *config.Config, defs []tools.ToolDefinition, logger zerolog.Logger, rec *telemetry.Recorder) (threads.Backend, error) {
	switch cfg.Backend {
	case config.BackendAnthropic:
		client := anthropic.NewClient(option.WithAPIKey(cfg.Anthropic.APIKey))
		return anthropicbackend.New(
			&client,
			memory.NewStore(afero.NewOsFs(), cfg.State.Dir),
			windowing.New(cfg.Anthropic.TokenBudget, logger),
			rec,
			anthropicbackend.Options{
				Model:        anthropic.Model(cfg.Anthropic.Model),
				MaxTokens:    cfg.Anthropic.MaxTokens,
				Instructions: session.Instructions,
				Tools:        defs,
			},
		), nil
	default:
		client := openai.New(openai.Options{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
			Logger:  logger,
		})
		id, err := client.EnsureAssistant(ctx, cfg.OpenAI.AssistantID, openai.AssistantSpec{
			Name:         session.AssistantName,
			Instructions: session.Instructions,
			Model:        cfg.OpenAI.Model,
			Tools:        defs,
		})
		if err != nil {
			return nil, fmt.Errorf("assistant: %w", err)
		}
		logger.Info().Str("assistant_id", id).Msg("assistant ready")
		return client, nil
	}
}
