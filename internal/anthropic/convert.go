package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/threadchat/internal/threads"
	"github.com/petasbytes/threadchat/memory"
	"github.com/petasbytes/threadchat/tools"
)

func toParams(msgs []memory.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, blk := range m.Blocks {
			switch blk.Type {
			case memory.BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(blk.Text))
			case memory.BlockToolUse:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    blk.ID,
					Name:  blk.Name,
					Input: blk.Input,
				}})
			case memory.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(blk.ToolUseID, blk.Content, blk.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == string(threads.RoleAssistant) {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toolParams(defs []tools.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: d.InputSchema.Properties,
				Required:   d.InputSchema.Required,
			},
		}})
	}
	return out
}

func toThreadMessage(m memory.Message) threads.Message {
	return threads.Message{
		ID:        m.ID,
		Role:      threads.Role(m.Role),
		Text:      m.Text(),
		RunID:     m.RunID,
		CreatedAt: m.CreatedAt,
	}
}
