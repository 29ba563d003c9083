package tools

import (
	"context"
	"fmt"

	"github.com/petasbytes/threadchat/internal/fsops"
)

type ListFilesInput struct{}

var ListFilesInputSchema = GenerateSchema[ListFilesInput]()

// ListFilesDefinition lists the sandbox root as a JSON array of names.
func ListFilesDefinition(sb *fsops.Sandbox) ToolDefinition {
	return ToolDefinition{
		Name:        "list_files",
		Description: "List files in the working directory",
		InputSchema: ListFilesInputSchema,
		Function: func(_ context.Context, _ Args) (string, error) {
			names, err := sb.List()
			if err != nil {
				return fmt.Sprintf("Error listing files: %v", err), nil
			}
			return names, nil
		},
	}
}
