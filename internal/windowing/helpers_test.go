package windowing_test

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/rs/zerolog"

	"github.com/petasbytes/threadchat/internal/windowing"
)

func T(text string) anthropic.ContentBlockParamUnion {
	return anthropic.NewTextBlock(text)
}

// TU is a tool_use block with no name or input, so it costs overhead only.
func TU(id string) anthropic.ContentBlockParamUnion {
	return anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{ID: id}}
}

func TUCall(id, name, input string) anthropic.ContentBlockParamUnion {
	return anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
		ID: id, Name: name, Input: json.RawMessage(input),
	}}
}

// TR is a tool_result without payload.
func TR(id string, isErr bool) anthropic.ContentBlockParamUnion {
	tr := anthropic.ToolResultBlockParam{ToolUseID: id}
	if isErr {
		tr.IsError = param.NewOpt(true)
	}
	return anthropic.ContentBlockParamUnion{OfToolResult: &tr}
}

func TRString(id, s string) anthropic.ContentBlockParamUnion {
	return anthropic.NewToolResultBlock(id, s, false)
}

func TRParts(id string, parts ...string) anthropic.ContentBlockParamUnion {
	content := make([]anthropic.ToolResultBlockParamContentUnion, len(parts))
	for i, p := range parts {
		content[i] = anthropic.ToolResultBlockParamContentUnion{OfText: &anthropic.TextBlockParam{Text: p}}
	}
	return anthropic.ContentBlockParamUnion{
		OfToolResult: &anthropic.ToolResultBlockParam{ToolUseID: id, Content: content},
	}
}

func Asst(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{Role: anthropic.MessageParamRoleAssistant, Content: blocks}
}

func User(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{Role: anthropic.MessageParamRoleUser, Content: blocks}
}

func newWindow(budget int) *windowing.Window {
	return windowing.New(budget, zerolog.Nop())
}

func roles(msgs []anthropic.MessageParam) []anthropic.MessageParamRole {
	out := make([]anthropic.MessageParamRole, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}
