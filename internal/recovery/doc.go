// Package recovery decides how a scan proceeds after a device error.
//
// The classifier maps a device error code plus rolling per-region error
// history onto one of four actions: continue to the next address, skip
// to a region boundary, wait and retry the same address, or abort. The
// guiding principle is that no device-reported error is fatal on its
// own; aborts are reserved for the caller when the transport itself is
// gone. Classification is a pure function of the code and history; it
// never sleeps, logs, or touches the transport.
package recovery
