// Package dispatch executes the tool invocations a run asks for and turns
// them into outputs for submission.
//
// Invariants:
//   - every resolved invocation yields exactly one output, in input order;
//   - a failing or panicking tool becomes an error string and never drops its
//     siblings;
//   - unknown tool names are skipped without output.
//
// Only failures of the pipeline itself (enumerating invocations) are retried.
package dispatch
