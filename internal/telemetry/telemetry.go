// Package telemetry records structured events about turns, runs and tool
// executions. Records go through zerolog and carry the turn ID from the context.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Recorder emits named events and timed spans.
type Recorder struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

// Nop returns a Recorder that drops everything.
func Nop() *Recorder {
	return New(zerolog.Nop())
}

// Logger returns the underlying logger scoped to the turn in ctx.
func (r *Recorder) Logger(ctx context.Context) *zerolog.Logger {
	l := r.logger
	if id, ok := TurnIDFromContext(ctx); ok {
		l = l.With().Str("turn_id", id).Logger()
	}
	return &l
}

// Event writes one info-level record named by the "event" field.
func (r *Recorder) Event(ctx context.Context, name string, fields map[string]any) {
	r.Logger(ctx).Info().Fields(fields).Str("event", name).Send()
}

// StartSpan logs the start of an operation and returns a func that logs its
// end with the elapsed duration. A non-nil error ends the span at error level.
func (r *Recorder) StartSpan(ctx context.Context, name string, fields map[string]any) func(err error) {
	l := r.Logger(ctx).With().Str("span", name).Fields(fields).Logger()
	start := time.Now()
	l.Debug().Str("event", "span_start").Send()

	return func(err error) {
		ev := l.Info()
		if err != nil {
			ev = l.Error().Err(err)
		}
		ev.Str("event", "span_end").Dur("duration", time.Since(start)).Send()
	}
}
