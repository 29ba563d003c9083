package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LogOptions selects where and how verbosely the process logs.
type LogOptions struct {
	Dir     string // directory for the JSON log file
	Level   string // zerolog level name
	Console bool   // human-readable output on stderr instead of the file
}

const logFileName = "threadchat.log"

// NewLogger builds the process logger. The terminal belongs to the chat UI,
// so by default records go to a JSON file under opts.Dir. The returned close
// func releases the file.
func NewLogger(opts LogOptions) (zerolog.Logger, func() error, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), noClose, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}

	if opts.Console {
		w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		return newLogger(w, level), noClose, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return zerolog.Nop(), noClose, fmt.Errorf("mkdir %s: %w", opts.Dir, err)
	}
	path := filepath.Join(opts.Dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), noClose, fmt.Errorf("open %s: %w", path, err)
	}
	return newLogger(f, level), f.Close, nil
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func noClose() error { return nil }
