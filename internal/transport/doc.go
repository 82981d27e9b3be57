// Package transport provides the memory-read primitive the scanner core
// is built on: read size bytes at an address, yielding either data or a
// device-reported error code.
//
// Two implementations conform to the Reader interface: EDLReader, which
// shells out to an external EDL tool for each peek, and ScriptReader,
// an in-memory scripted device used by tests and offline diagnostics.
// The core is agnostic to which is active and tolerates either latency
// profile. Adapter selection happens once, at construction, via a
// capability check; there is no per-read fallback between adapters.
package transport
