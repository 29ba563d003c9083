package tools

import (
	"context"
	"fmt"

	"github.com/petasbytes/threadchat/internal/fsops"
)

type ReadFileInput struct {
	FilePath string `json:"file_path" jsonschema_description:"The name of the file to read"`
}

var ReadFileInputSchema = GenerateSchema[ReadFileInput]()

// ReadFileDefinition reads a file from the sandbox.
func ReadFileDefinition(sb *fsops.Sandbox) ToolDefinition {
	return ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file from the working directory",
		InputSchema: ReadFileInputSchema,
		Function: func(_ context.Context, args Args) (string, error) {
			path, err := requireArg(args, "file_path")
			if err != nil {
				return "", err
			}
			content, err := sb.Read(path)
			if err != nil {
				return fmt.Sprintf("Error reading file: %v", err), nil
			}
			return content, nil
		},
	}
}
