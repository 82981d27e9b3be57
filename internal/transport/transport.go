package transport

import (
	"context"
	"errors"
	"fmt"
)

// Device error codes observed on the wire.
// These are the codes the recovery policy differentiates on; anything
// else is an unclassified device error and gets a single-address skip.
const (
	// CodeNonStandard (0x04) is the device's non-standard response,
	// in practice a honeypot / protected-region signal.
	CodeNonStandard byte = 0x04

	// CodeTimeout (0xff) marks a read timeout or link disconnect.
	CodeTimeout byte = 0xff
)

// WordSize is the read granularity the device supports. Every peek is
// exactly one 4-byte aligned word.
const WordSize uint32 = 4

// Reader is the abstract read primitive consumed by the scanner core.
//
// Design decision: an interface rather than a concrete type so the core
// never knows whether it is talking to a live link or a scripted device,
// and so tests can exercise every recovery path without hardware.
type Reader interface {
	// Read returns size bytes at address. A device-reported failure is
	// returned as a *DeviceError; any other error means the transport
	// itself is gone and the caller should abort.
	//
	// The context bounds the read; implementations must respect
	// cancellation.
	Read(ctx context.Context, address, size uint32) ([]byte, error)

	// Name identifies the adapter for diagnostics ("edl", "script").
	Name() string
}

// DeviceError is an error response reported by the device itself, as
// opposed to a failure of the transport carrying it. The scan loop
// absorbs these through the recovery policy; they never abort a scan.
type DeviceError struct {
	// Address is where the failing read was issued.
	Address uint32

	// Code is the device error code (CodeNonStandard, CodeTimeout, ...).
	Code byte

	// Raw is the raw response payload, if the device sent one.
	Raw []byte
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error 0x%02x (%s) at 0x%08x", e.Code, codeName(e.Code), e.Address)
}

// AsDeviceError extracts a *DeviceError from err, if one is present.
func AsDeviceError(err error) (*DeviceError, bool) {
	var de *DeviceError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// codeName returns a human-readable name for a device error code.
func codeName(code byte) string {
	switch code {
	case CodeNonStandard:
		return "non-standard response"
	case CodeTimeout:
		return "timeout/disconnect"
	default:
		return "unclassified"
	}
}

// ErrNoTransport is returned by New when no usable transport exists.
var ErrNoTransport = errors.New("no usable transport: EDL tool not found in PATH")
