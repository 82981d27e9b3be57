// Package diaglog is the durable diagnostic record of a device session.
//
// Every response, error, SLA challenge, and loader handshake is appended
// to an in-memory sequence the moment it happens, and can be serialized
// to a self-describing JSON snapshot at any point. Two guarantees are
// deliberately distinct: the optional live stream is newline-delimited
// JSON that a tailing monitor can read mid-write, while Save produces a
// single well-formed snapshot with summary counters.
//
// The hot-path discipline is strict: logging calls never fail the scan.
// Storage problems are themselves recorded in memory and surfaced via
// Save or Summary, not raised from the scan loop.
package diaglog
