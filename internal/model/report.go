package model

import (
	"fmt"
	"strings"
	"time"
)

// ScanReport is the result of one memory-scan invocation.
// It contains every non-zero discovery, the regions the recovery policy
// decided to skip, and enough bookkeeping to reconstruct what happened.
//
// Design decision: We use an explicit report object scoped to a single
// scan rather than scanner instance state accumulating across calls.
// A fresh report is created at scan start and returned to the caller,
// which avoids hidden cross-call state leakage.
type ScanReport struct {
	// StartAddr is the first address of the scanned range (inclusive).
	StartAddr uint32 `json:"start_addr"`

	// EndAddr is the end of the scanned range (exclusive).
	EndAddr uint32 `json:"end_addr"`

	// Step is the address increment between reads, in bytes.
	Step uint32 `json:"step"`

	// DateScanned is the timestamp when the scan started.
	DateScanned time.Time `json:"date_scanned"`

	// Elapsed is the wall-clock duration of the scan.
	Elapsed time.Duration `json:"elapsed_ns"`

	// ReadsAttempted counts every read issued, successful or not.
	ReadsAttempted int `json:"reads_attempted"`

	// ErrorCount counts device-reported read failures.
	ErrorCount int `json:"error_count"`

	// Discoveries holds every non-zero word found, in address order.
	// All-zero reads are honeypot responses and are never recorded here.
	Discoveries []Discovery `json:"discoveries"`

	// SkipRegions lists regions the recovery policy skipped.
	SkipRegions []SkipRegion `json:"skip_regions,omitempty"`

	// Aborted is true if the scan terminated before reaching EndAddr
	// for a reason other than cancellation (e.g. transport loss).
	Aborted bool `json:"aborted,omitempty"`

	// AbortReason describes why the scan aborted, if it did.
	AbortReason string `json:"abort_reason,omitempty"`

	// Cancelled is true if the scan was interrupted by the user.
	// All discoveries recorded before the interrupt are retained.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewScanReport creates an empty report for the given range.
func NewScanReport(startAddr, endAddr, step uint32) *ScanReport {
	return &ScanReport{
		StartAddr:   startAddr,
		EndAddr:     endAddr,
		Step:        step,
		DateScanned: time.Now(),
		Discoveries: make([]Discovery, 0),
		SkipRegions: make([]SkipRegion, 0),
	}
}

// AddDiscovery appends a non-zero word to the report.
func (r *ScanReport) AddDiscovery(addr uint32, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	r.Discoveries = append(r.Discoveries, Discovery{Address: addr, Value: v})
}

// NonZeroCount returns the number of non-zero words discovered so far.
func (r *ScanReport) NonZeroCount() int {
	return len(r.Discoveries)
}

// Value returns the discovered word at addr, or nil if addr yielded
// zero data or was never read.
func (r *ScanReport) Value(addr uint32) []byte {
	for i := range r.Discoveries {
		if r.Discoveries[i].Address == addr {
			return r.Discoveries[i].Value
		}
	}
	return nil
}

// Discovery is one non-zero word read from device memory.
// Discoveries are immutable once created.
type Discovery struct {
	// Address is the physical address the word was read from.
	Address uint32 `json:"address"`

	// Value is the raw word, device byte order.
	Value []byte `json:"value"`
}

// AddressHex returns the address formatted as 0xXXXXXXXX.
func (d Discovery) AddressHex() string {
	return fmt.Sprintf("0x%08x", d.Address)
}

// ValueHex returns the value as space-separated hex bytes ("aa bb cc dd").
// This is the on-disk results-log representation.
func (d Discovery) ValueHex() string {
	parts := make([]string, len(d.Value))
	for i, b := range d.Value {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

// String returns the results-log line for this discovery.
func (d Discovery) String() string {
	return d.AddressHex() + ": " + d.ValueHex()
}

// SkipRegion is an address range the recovery policy abandoned after
// repeated device errors. Both Start and End align to the region
// boundary size that triggered the skip (4096 for 0x04 escalation,
// the word size for unresolved timeouts).
type SkipRegion struct {
	// Start is the first skipped address (inclusive).
	Start uint32 `json:"start"`

	// End is the end of the skipped range (exclusive).
	End uint32 `json:"end"`

	// Reason identifies the error class that caused the skip,
	// e.g. "0x04_errors" or "unresolved_timeout".
	Reason string `json:"reason"`
}

// Contains reports whether addr falls inside the region.
func (s SkipRegion) Contains(addr uint32) bool {
	return addr >= s.Start && addr < s.End
}

// String formats the region for skip reports.
func (s SkipRegion) String() string {
	return fmt.Sprintf("0x%08x - 0x%08x (%s)", s.Start, s.End, s.Reason)
}
