// Package openai implements threads.Backend over the hosted Assistants v2
// API using the official openai-go SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/threadchat/internal/threads"
	"github.com/petasbytes/threadchat/tools"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"

	maxErrorBodyBytes = 2048
	runsPageSize      = 100
	messagesPageSize  = 20
)

var (
	ErrUnauthorized = errors.New("openai: unauthorized")
	ErrRateLimited  = errors.New("openai: rate limited")
	ErrUnavailable  = errors.New("openai: service unavailable")
	ErrNoAssistant  = errors.New("openai: no assistant configured")
)

// APIError is a non-2xx response that does not map to one of the sentinels.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.Status, e.Message)
}

type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
	// RequestOptions are appended after the options derived above.
	RequestOptions []option.RequestOption
}

// Client talks to the Assistants API. It satisfies threads.Backend once an
// assistant is attached with EnsureAssistant.
type Client struct {
	api         openai.Client
	logger      zerolog.Logger
	assistantID string
}

var _ threads.Backend = (*Client)(nil)

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{logger: opts.Logger}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(baseURL + "/"),
		option.WithRequestTimeout(timeout),
		option.WithHeader("OpenAI-Beta", "assistants=v2"),
		option.WithMiddleware(c.logRequest),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	c.api = openai.NewClient(append(reqOpts, opts.RequestOptions...)...)
	return c
}

func (c *Client) logRequest(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	start := time.Now()
	resp, err := next(req)
	ev := c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("elapsed", time.Since(start))
	if resp != nil {
		ev = ev.Int("status", resp.StatusCode)
	}
	ev.Err(err).Msg("openai request")
	return resp, err
}

// AssistantSpec describes the assistant created when no id is configured.
type AssistantSpec struct {
	Name         string
	Instructions string
	Model        string
	Tools        []tools.ToolDefinition
}

// EnsureAssistant attaches the client to assistantID, or creates a new
// assistant from spec when assistantID is empty. It returns the id in use.
func (c *Client) EnsureAssistant(ctx context.Context, assistantID string, spec AssistantSpec) (string, error) {
	if id := strings.TrimSpace(assistantID); id != "" {
		c.assistantID = id
		return id, nil
	}
	asst, err := c.api.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Name:         openai.String(spec.Name),
		Instructions: openai.String(spec.Instructions),
		Model:        shared.ChatModel(spec.Model),
		Tools:        functionTools(spec.Tools),
	})
	if err != nil {
		return "", fmt.Errorf("create assistant: %w", mapError(err))
	}
	if asst.ID == "" {
		return "", errors.New("create assistant: empty id in response")
	}
	c.assistantID = asst.ID
	c.logger.Info().Str("assistant_id", asst.ID).Str("model", spec.Model).Msg("created assistant")
	return asst.ID, nil
}

func (c *Client) AssistantID() string { return c.assistantID }

func (c *Client) CreateThread(ctx context.Context) (string, error) {
	th, err := c.api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", mapError(err))
	}
	return th.ID, nil
}

func (c *Client) CreateMessage(ctx context.Context, threadID, text string) (threads.Message, error) {
	msg, err := c.api.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role:    openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return threads.Message{}, fmt.Errorf("create message: %w", mapError(err))
	}
	return parseMessage(gjson.Parse(msg.RawJSON())), nil
}

func (c *Client) CreateRun(ctx context.Context, threadID string) (threads.Run, error) {
	if c.assistantID == "" {
		return threads.Run{}, ErrNoAssistant
	}
	run, err := c.api.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: c.assistantID,
	})
	if err != nil {
		return threads.Run{}, fmt.Errorf("create run: %w", mapError(err))
	}
	return toRun(*run), nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (threads.Run, error) {
	run, err := c.api.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return threads.Run{}, fmt.Errorf("retrieve run %s: %w", runID, mapError(err))
	}
	return toRun(*run), nil
}

func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []threads.ToolOutput) (threads.Run, error) {
	params := openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs)),
	}
	for _, o := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(o.ToolCallID),
			Output:     openai.String(o.Output),
		})
	}
	run, err := c.api.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, params)
	if err != nil {
		return threads.Run{}, fmt.Errorf("submit tool outputs for run %s: %w", runID, mapError(err))
	}
	return toRun(*run), nil
}

func (c *Client) ListRuns(ctx context.Context, threadID string) ([]threads.Run, error) {
	page, err := c.api.Beta.Threads.Runs.List(ctx, threadID, openai.BetaThreadRunListParams{
		Limit: openai.Int(runsPageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", mapError(err))
	}
	runs := make([]threads.Run, 0, len(page.Data))
	for _, r := range page.Data {
		runs = append(runs, toRun(r))
	}
	return runs, nil
}

func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (threads.Run, error) {
	run, err := c.api.Beta.Threads.Runs.Cancel(ctx, threadID, runID)
	if err != nil {
		return threads.Run{}, fmt.Errorf("cancel run %s: %w", runID, mapError(err))
	}
	return toRun(*run), nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string) ([]threads.Message, error) {
	page, err := c.api.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(messagesPageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", mapError(err))
	}
	msgs := make([]threads.Message, 0, len(page.Data))
	for _, m := range page.Data {
		msgs = append(msgs, parseMessage(gjson.Parse(m.RawJSON())))
	}
	return msgs, nil
}

// mapError turns SDK status errors into the package sentinels.
func mapError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = errorMessage(readErrorBody(apiErr.Response))
	}
	if msg == "" {
		msg = http.StatusText(apiErr.StatusCode)
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case apiErr.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}
	return &APIError{Status: apiErr.StatusCode, Message: msg}
}

func readErrorBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return strings.TrimSpace(string(body))
}

// errorMessage pulls error.message out of an API error body, falling back
// to the raw body when it is not the usual envelope.
func errorMessage(body string) string {
	if body == "" {
		return ""
	}
	if gjson.Valid(body) {
		if m := gjson.Get(body, "error.message"); m.Exists() && m.String() != "" {
			return m.String()
		}
	}
	return body
}
