package firehose

import (
	"regexp"
	"strings"
)

// Status classifies a device response.
type Status string

// Response statuses, from most to least specific.
const (
	// StatusAck is a positive acknowledgement.
	StatusAck Status = "ack"

	// StatusNak is an explicit rejection.
	StatusNak Status = "nak"

	// StatusDeviceLog is an informational log line from the loader.
	StatusDeviceLog Status = "log"

	// StatusError is an error response with a value attribute.
	StatusError Status = "error"

	// StatusErrorCode04 is the non-standard single-byte 0x04 response
	// the protected memory interface uses as a honeypot signal.
	StatusErrorCode04 Status = "error_code_0x04"

	// StatusUnknown is anything the parser cannot classify.
	StatusUnknown Status = "unknown"
)

// errorValuePattern extracts the value attribute from error responses.
var errorValuePattern = regexp.MustCompile(`value="([^"]+)"`)

// Response is a classified device response.
type Response struct {
	// Status is the response classification.
	Status Status

	// Raw is the untouched response bytes.
	Raw []byte

	// Text is the response decoded as text, best effort.
	Text string

	// ErrValue is the error message, when Status is StatusError or
	// StatusNak and the device attached one.
	ErrValue string
}

// ParseResponse classifies raw response bytes.
//
// The single-byte 0x04 check runs before the textual checks: the device
// emits that byte alone, with no XML wrapper, when a peek lands on a
// protected address.
func ParseResponse(raw []byte) Response {
	resp := Response{Status: StatusUnknown, Raw: raw}

	if len(raw) > 0 && raw[0] == 0x04 {
		resp.Status = StatusErrorCode04
		resp.ErrValue = "non-standard response (0x04)"
		return resp
	}

	text := string(raw)
	resp.Text = text

	switch {
	case strings.Contains(text, "ACK"):
		resp.Status = StatusAck
	case strings.Contains(text, "NAK"):
		resp.Status = StatusNak
		resp.ErrValue = "device NAK response"
	case strings.Contains(text, "ERROR") || strings.Contains(text, "error"):
		resp.Status = StatusError
	case strings.Contains(text, "<log "):
		resp.Status = StatusDeviceLog
	}

	if resp.Status == StatusError || resp.Status == StatusNak {
		if m := errorValuePattern.FindStringSubmatch(text); m != nil {
			resp.ErrValue = m[1]
		}
	}

	return resp
}

// OK reports whether the response is a positive acknowledgement.
func (r Response) OK() bool {
	return r.Status == StatusAck
}

// IsError reports whether the response indicates a failure.
func (r Response) IsError() bool {
	switch r.Status {
	case StatusNak, StatusError, StatusErrorCode04:
		return true
	default:
		return false
	}
}
