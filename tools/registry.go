package tools

import "github.com/petasbytes/threadchat/internal/fsops"

// Registry returns all tool definitions bound to one sandbox.
func Registry(sb *fsops.Sandbox) []ToolDefinition {
	return []ToolDefinition{
		ReadFileDefinition(sb),
		WriteFileDefinition(sb),
		ListFilesDefinition(sb),
	}
}
