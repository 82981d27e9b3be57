// Package scanner drives timed memory scans over a transport.
//
// The loop walks an address range at a fixed step, pacing every read
// with a mandatory delay the target hardware requires, classifying
// failures through the recovery policy, and recording every outcome in
// the diagnostic log. Non-zero words are mirrored to a durable results
// log the moment they are found, so partial results survive a crash or
// an interrupt.
//
// Execution is single-threaded and synchronous on purpose: the device
// enforces strict request/response pacing, exactly one read is in
// flight at a time, and the inter-read sleep is a hardware-correctness
// requirement rather than a throughput concern.
package scanner
