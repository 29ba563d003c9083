// Package tools defines the file tools exposed to the remote model.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - File tools: read_file, write_file, list_files (non-recursive), all confined
//     to one sandbox root.
//
// Handlers report file-system failures as text ("Error reading file: ...")
// because outputs are fed back to the model. A returned error means the call
// itself was unusable (e.g. a missing argument).
package tools
