package tools_test

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/petasbytes/threadchat/internal/fsops"
	"github.com/petasbytes/threadchat/tools"
)

func newRegistry(t *testing.T) ([]tools.ToolDefinition, *fsops.Sandbox) {
	t.Helper()
	sb := fsops.New(afero.NewMemMapFs(), "/agent_directory")
	return tools.Registry(sb), sb
}

func find(t *testing.T, defs []tools.ToolDefinition, name string) tools.ToolDefinition {
	t.Helper()
	for _, d := range defs {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("tool %q not in registry", name)
	return tools.ToolDefinition{}
}

func TestRegistry_ToolNames(t *testing.T) {
	defs, _ := newRegistry(t)
	want := map[string]struct{}{
		"read_file":  {},
		"write_file": {},
		"list_files": {},
	}
	if len(defs) != len(want) {
		t.Fatalf("unexpected number of tools: got %d want %d", len(defs), len(want))
	}
	for _, d := range defs {
		if _, ok := want[d.Name]; !ok {
			t.Errorf("unexpected tool in registry: %q", d.Name)
		}
		if d.Function == nil {
			t.Errorf("tool %q has no handler", d.Name)
		}
	}
}

func TestSchemas_RequiredFields(t *testing.T) {
	if got := tools.ReadFileInputSchema.Required; len(got) != 1 || got[0] != "file_path" {
		t.Fatalf("read_file required = %v", got)
	}
	// content is optional locally but strict mode lists every property.
	if got := tools.WriteFileInputSchema.Required; len(got) != 1 || got[0] != "file_path" {
		t.Fatalf("write_file required = %v", got)
	}
	strict := tools.WriteFileInputSchema.Strict()
	req, _ := strict["required"].([]string)
	if len(req) != 2 || req[0] != "content" || req[1] != "file_path" {
		t.Fatalf("strict required = %v", strict["required"])
	}
	if strict["additionalProperties"] != false {
		t.Fatalf("strict schema must forbid additional properties")
	}
	if len(tools.ListFilesInputSchema.Properties) != 0 {
		t.Fatalf("list_files takes no arguments, got %v", tools.ListFilesInputSchema.Properties)
	}
}
