// Package output renders hitwire exchanges.
//
// Supported output formats:
//   - Console: status line, headers and body with fatih/color highlighting
//   - JSON: one machine-readable document per run
//
// Both implement Formatter. JSON output is buffered and implements Flushable.
package output
