// Package main provides the entry point for the edlscan CLI.
//
// edlscan is a memory scanner for Qualcomm devices in Emergency Download
// (EDL) mode. It extracts SLA certificates and QFPROM fuse data from
// protected memory regions while surviving the device's error responses.
//
// Usage:
//
//	edlscan scan
//	edlscan scan --start-addr 0x00700000 --end-addr 0x00800000
//	edlscan analyze boot.img
//
// See --help for all available options.
package main

// main is the entry point for edlscan.
func main() {
	Execute()
}
