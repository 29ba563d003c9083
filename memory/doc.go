// Package memory persists locally emulated conversation threads.
//
// Persistence model:
//   - One JSON file per thread under <dir>/threads/<thread id>.json.
//   - A transcript keeps every block the model saw: text, tool_use and
//     tool_result, so a later process can resend it verbatim.
//   - Writes go to a temp file first and are renamed into place.
package memory
