package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc/panics"
	"github.com/xeipuuv/gojsonschema"

	"github.com/petasbytes/threadchat/internal/telemetry"
	"github.com/petasbytes/threadchat/internal/threads"
	"github.com/petasbytes/threadchat/tools"
)

// Options bound the retry of the dispatch pipeline.
type Options struct {
	Attempts    int           // total tries, including the first
	BackoffBase time.Duration // first wait; doubles per retry
	BackoffCap  time.Duration // upper bound for a single wait
}

func DefaultOptions() Options {
	return Options{Attempts: 3, BackoffBase: 4 * time.Second, BackoffCap: 10 * time.Second}
}

// Result is the outcome of one dispatched batch.
type Result struct {
	Outputs    []threads.ToolOutput
	Dispatched []string // names of the tools that ran, in order
}

// Source enumerates the invocations to run. It is called again on each retry.
type Source func(ctx context.Context) ([]threads.ToolCall, error)

type entry struct {
	def    tools.ToolDefinition
	schema *gojsonschema.Schema
}

type Dispatcher struct {
	tools map[string]entry
	opts  Options
	rec   *telemetry.Recorder
}

// New compiles the argument schema of every definition.
func New(defs []tools.ToolDefinition, opts Options, rec *telemetry.Recorder) (*Dispatcher, error) {
	if opts.Attempts <= 0 {
		return nil, fmt.Errorf("dispatch: attempts must be positive, got %d", opts.Attempts)
	}
	if rec == nil {
		rec = telemetry.Nop()
	}
	d := &Dispatcher{tools: make(map[string]entry, len(defs)), opts: opts, rec: rec}
	for _, def := range defs {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema.Document()))
		if err != nil {
			return nil, fmt.Errorf("dispatch: compile schema for %s: %w", def.Name, err)
		}
		d.tools[def.Name] = entry{def: def, schema: schema}
	}
	return d, nil
}

// Resolve enumerates invocations from src and dispatches them, retrying with
// exponential backoff when enumeration fails.
func (d *Dispatcher) Resolve(ctx context.Context, src Source) (Result, error) {
	backoff := retry.WithMaxRetries(uint64(d.opts.Attempts-1),
		retry.WithCappedDuration(d.opts.BackoffCap, retry.NewExponential(d.opts.BackoffBase)))

	var res Result
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		calls, err := src(ctx)
		if err != nil {
			d.rec.Logger(ctx).Warn().Err(err).Int("attempt", attempt).Msg("enumerate tool calls failed")
			return retry.RetryableError(fmt.Errorf("enumerate tool calls: %w", err))
		}
		res = d.Dispatch(ctx, calls)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Dispatch runs each call in order. It never fails: tool problems are
// reported in the outputs.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []threads.ToolCall) Result {
	res := Result{Outputs: make([]threads.ToolOutput, 0, len(calls))}
	for _, call := range calls {
		e, ok := d.tools[call.Name]
		if !ok {
			d.rec.Logger(ctx).Warn().Str("tool_name", call.Name).Str("tool_call_id", call.ID).Msg("unknown tool skipped")
			continue
		}
		res.Outputs = append(res.Outputs, threads.ToolOutput{
			ToolCallID: call.ID,
			Output:     d.exec(ctx, e, call),
		})
		res.Dispatched = append(res.Dispatched, call.Name)
	}
	return res
}

func (d *Dispatcher) exec(ctx context.Context, e entry, call threads.ToolCall) string {
	start := time.Now()
	out, err := d.invoke(ctx, e, call)
	fields := map[string]any{
		"tool_name":    call.Name,
		"tool_call_id": call.ID,
		"duration_ms":  time.Since(start).Milliseconds(),
		"input_size":   len(call.Arguments),
		"error":        nil,
	}
	if err != nil {
		out = fmt.Sprintf("Error executing %s: %v", call.Name, err)
		// Keep raw payloads out of the log; the model still sees the detail.
		fields["error"] = "tool error"
	}
	fields["output_size"] = len(out)
	d.rec.Event(ctx, "tool_exec", fields)
	return out
}

func (d *Dispatcher) invoke(ctx context.Context, e entry, call threads.ToolCall) (out string, err error) {
	args, err := parseArgs(call.Arguments, e.schema)
	if err != nil {
		return "", err
	}
	if r := panics.Try(func() { out, err = e.def.Function(ctx, args) }); r != nil {
		d.rec.Logger(ctx).Error().Str("tool_name", call.Name).Bytes("stack", r.Stack).Msgf("tool panicked: %v", r.Value)
		return "", fmt.Errorf("panic: %v", r.Value)
	}
	return out, err
}

// parseArgs decodes a JSON object of string arguments and validates it
// against the tool schema. An empty payload means no arguments.
func parseArgs(raw string, schema *gojsonschema.Schema) (tools.Args, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if doc == nil {
		return nil, errors.New("invalid arguments: expected a JSON object")
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate arguments: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
	}

	args := make(tools.Args, len(doc))
	for k, v := range doc {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("invalid arguments: %q must be a string", k)
		}
		args[k] = s
	}
	return args, nil
}
