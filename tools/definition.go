package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// Args holds the named string arguments of one tool invocation.
type Args map[string]string

// Func executes a tool.
type Func func(ctx context.Context, args Args) (string, error)

type ToolDefinition struct {
	Name        string
	Description string
	InputSchema Schema
	Function    Func
}

// Schema is the object schema of a tool's arguments.
type Schema struct {
	Properties map[string]any
	Required   []string
}

// GenerateSchema reflects T into a closed object schema. Fields without
// omitempty are required.
func GenerateSchema[T any]() Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	b, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		panic(fmt.Sprintf("tools: reflect schema for %T: %v", v, err))
	}
	var doc struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		panic(fmt.Sprintf("tools: decode schema for %T: %v", v, err))
	}
	if doc.Properties == nil {
		doc.Properties = map[string]any{}
	}
	return Schema{Properties: doc.Properties, Required: doc.Required}
}

// Document returns the schema as a JSON object with the real required list.
// This is what arguments are validated against locally.
func (s Schema) Document() map[string]any {
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           s.Properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// Strict returns the schema in strict function-calling form, where every
// property must be listed as required.
func (s Schema) Strict() map[string]any {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	doc := s.Document()
	doc["required"] = names
	return doc
}

func requireArg(args Args, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	return v, nil
}
