// Package report provides output formatting for scan and analysis results.
//
// The package supports multiple output formats:
//   - Simple: Human-readable text for terminal display
//   - JSON: Machine-readable format for tool integration
//   - Markdown: Documentation-friendly format with tables
//
// All writers implement the Writer interface, and MultiWriter fans one
// report out to several destinations (e.g. terminal and file).
package report
