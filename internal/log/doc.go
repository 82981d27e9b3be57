// Package log provides logging for edlscan on top of the standard slog
// package, with automatic masking of device-identifying material.
//
// Diagnostic logs from EDL sessions are routinely shared when asking for
// help with a bricked device, and they would otherwise carry the device
// serial number, IMEI, and raw SLA challenge bytes. The MaskingHandler
// redacts those before they reach the underlying handler, so a shared
// log never identifies the handset. The challenge vault file, which is
// explicitly for challenge material, is written outside this package.
package log
