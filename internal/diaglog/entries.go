package diaglog

import (
	"encoding/hex"
	"fmt"
	"time"
	"unicode/utf8"
)

// asciiPreviewLimit caps the decoded preview stored with a response.
const asciiPreviewLimit = 200

// ResponseEntry records one device response.
// Entries are immutable once created.
type ResponseEntry struct {
	// Timestamp is when the response was observed.
	Timestamp time.Time `json:"timestamp"`

	// Source identifies the transport that produced it ("edl", "script").
	Source string `json:"source"`

	// Type is the response kind ("peek_response", "nop_heartbeat", ...).
	Type string `json:"type"`

	// Status is the outcome ("OK", "honeypot", an error code name).
	Status string `json:"status"`

	// DataHex is the response payload, hex-encoded.
	DataHex string `json:"data_hex"`

	// DataSize is the payload length in bytes.
	DataSize int `json:"data_size"`

	// DataASCII is a best-effort text preview of the payload.
	DataASCII string `json:"data_ascii"`
}

// NewResponseEntry builds a ResponseEntry for the given payload.
func NewResponseEntry(source, respType, status string, data []byte) ResponseEntry {
	return ResponseEntry{
		Timestamp: time.Now(),
		Source:    source,
		Type:      respType,
		Status:    status,
		DataHex:   hex.EncodeToString(data),
		DataSize:  len(data),
		DataASCII: safeDecode(data),
	}
}

// ErrorEntry records one protocol or connection error.
type ErrorEntry struct {
	// Timestamp is when the error was observed.
	Timestamp time.Time `json:"timestamp"`

	// Type is the error class ("usb_error_0x04", "usb_timeout", ...).
	Type string `json:"type"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Context carries structured detail (address, recovery action, ...).
	Context map[string]string `json:"context,omitempty"`
}

// ChallengeEntry records an SLA challenge received from the device.
type ChallengeEntry struct {
	// Timestamp is when the challenge arrived.
	Timestamp time.Time `json:"timestamp"`

	// ChallengeHex is the raw challenge, hex-encoded.
	ChallengeHex string `json:"challenge_hex"`

	// Size is the challenge length in bytes.
	Size int `json:"size"`
}

// LoaderResponseEntry records the outcome of sending one Firehose loader.
type LoaderResponseEntry struct {
	// Timestamp is when the loader result was observed.
	Timestamp time.Time `json:"timestamp"`

	// Loader is the loader file name.
	Loader string `json:"loader"`

	// Response is the device's reply, as text.
	Response string `json:"response"`

	// Success reports whether the loader was accepted.
	Success bool `json:"success"`
}

// safeDecode renders data as text for the diagnostic record, replacing
// invalid bytes and truncating long payloads.
func safeDecode(data []byte) string {
	limited := data
	truncated := 0
	if len(limited) > asciiPreviewLimit {
		truncated = len(limited) - asciiPreviewLimit
		limited = limited[:asciiPreviewLimit]
	}

	decoded := string(limited)
	if !utf8.ValidString(decoded) {
		decoded = string([]rune(decoded)) // replace invalid sequences
	}
	if truncated > 0 {
		decoded += fmt.Sprintf("... (+%d bytes)", truncated)
	}
	return decoded
}
