package tools

import (
	"context"
	"fmt"

	"github.com/petasbytes/threadchat/internal/fsops"
)

type WriteFileInput struct {
	FilePath string `json:"file_path" jsonschema_description:"The name of the file to write"`
	Content  string `json:"content,omitempty" jsonschema_description:"The content to write to the file"`
}

var WriteFileInputSchema = GenerateSchema[WriteFileInput]()

// WriteFileDefinition creates or truncates a file in the sandbox. Content
// defaults to the empty string.
func WriteFileDefinition(sb *fsops.Sandbox) ToolDefinition {
	return ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the working directory",
		InputSchema: WriteFileInputSchema,
		Function: func(_ context.Context, args Args) (string, error) {
			path, err := requireArg(args, "file_path")
			if err != nil {
				return "", err
			}
			if err := sb.Write(path, args["content"]); err != nil {
				return fmt.Sprintf("Error writing file: %v", err), nil
			}
			return fmt.Sprintf("Successfully wrote to %s", path), nil
		},
	}
}
