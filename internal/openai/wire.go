package openai

import (
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/threadchat/internal/threads"
	"github.com/petasbytes/threadchat/tools"
)

// functionTools declares each tool as a strict function.
func functionTools(defs []tools.ToolDefinition) []openai.AssistantToolUnionParam {
	out := make([]openai.AssistantToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.AssistantToolUnionParam{
			OfFunction: &openai.FunctionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        d.Name,
					Description: openai.String(d.Description),
					Parameters:  shared.FunctionParameters(d.InputSchema.Strict()),
					Strict:      openai.Bool(true),
				},
			},
		})
	}
	return out
}

func toRun(r openai.Run) threads.Run {
	run := threads.Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		Status:   threads.RunStatus(r.Status),
	}
	if r.LastError.Code != "" || r.LastError.Message != "" {
		run.LastError = &threads.RunError{Code: string(r.LastError.Code), Message: r.LastError.Message}
	}
	if r.RequiredAction.Type == "submit_tool_outputs" {
		for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
			if tc.Type != "" && tc.Type != "function" {
				continue
			}
			run.ToolCalls = append(run.ToolCalls, threads.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return run
}

// parseMessage flattens the text parts of a message object. Image and file
// parts are dropped.
func parseMessage(v gjson.Result) threads.Message {
	var parts []string
	v.Get("content").ForEach(func(_, part gjson.Result) bool {
		if part.Get("type").String() == "text" {
			parts = append(parts, part.Get("text.value").String())
		}
		return true
	})
	msg := threads.Message{
		ID:    v.Get("id").String(),
		Role:  threads.Role(v.Get("role").String()),
		Text:  strings.Join(parts, "\n"),
		RunID: v.Get("run_id").String(),
	}
	if ts := v.Get("created_at").Int(); ts > 0 {
		msg.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return msg
}
