package transport

import "context"

// ScriptReader is an in-memory device with scripted responses.
// It backs the package tests and the offline diagnose mode: every
// recovery path (honeypots, 0x04 runs, timeout storms, transport loss)
// can be exercised without hardware.
//
// Responses for one address are consumed in order, so "fail twice then
// succeed" scripts are expressible. Once an address's queue is drained,
// the default response applies.
type ScriptReader struct {
	// scripts maps an address to its queued responses.
	scripts map[uint32][]ScriptResponse

	// fallback is returned for unscripted addresses and drained queues.
	fallback ScriptResponse

	// reads records every address in issue order, for assertions.
	reads []uint32
}

// ScriptResponse is one scripted read outcome: data or an error, never both.
type ScriptResponse struct {
	// Data is the bytes to return on success.
	Data []byte

	// Err is the error to return instead, typically a *DeviceError.
	Err error
}

// NewScriptReader creates a ScriptReader whose default response is an
// all-zero word (the honeypot pattern).
func NewScriptReader() *ScriptReader {
	return &ScriptReader{
		scripts:  make(map[uint32][]ScriptResponse),
		fallback: ScriptResponse{Data: []byte{0, 0, 0, 0}},
	}
}

// Name identifies the adapter.
func (r *ScriptReader) Name() string { return "script" }

// Script queues responses for an address, consumed one per read.
func (r *ScriptReader) Script(address uint32, responses ...ScriptResponse) {
	r.scripts[address] = append(r.scripts[address], responses...)
}

// SetDefault replaces the response used for unscripted addresses.
func (r *ScriptReader) SetDefault(resp ScriptResponse) {
	r.fallback = resp
}

// Reads returns every address read so far, in order.
func (r *ScriptReader) Reads() []uint32 {
	return r.reads
}

// Read returns the next scripted response for the address.
func (r *ScriptReader) Read(ctx context.Context, address, size uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.reads = append(r.reads, address)

	resp := r.fallback
	if queue, ok := r.scripts[address]; ok && len(queue) > 0 {
		resp = queue[0]
		r.scripts[address] = queue[1:]
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	if uint32(len(resp.Data)) >= size {
		return resp.Data[:size], nil
	}
	return resp.Data, nil
}
