// Package pipeline provides a framework for executing diagnostic probes
// in sequence.
//
// The diagnose command runs a series of probes against the device link:
// tool availability, single-word reads, read-latency sampling, and an
// offline rehearsal of the error recovery policy. Each probe is a Step
// that records its outcome into a DiagnosticReport.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
// 1. It allows easy addition/removal of probes without modifying core logic
// 2. It provides consistent error handling and logging across probes
// 3. It supports cancellation via context between probes
//
// The package also provides a BatchAnalyzer for analyzing multiple boot
// images concurrently with errgroup-based concurrency control.
package pipeline
