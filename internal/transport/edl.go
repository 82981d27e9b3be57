package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// EDLReader reads device memory by invoking an external EDL tool once
// per peek. It is the higher-latency fallback transport: each read costs
// a process spawn, but it works anywhere the tool does and needs no USB
// permissions of its own.
type EDLReader struct {
	// binary is the resolved path of the EDL tool.
	binary string

	// loader is the Firehose programmer handed to the tool.
	loader string

	// timeout bounds one tool invocation.
	timeout time.Duration

	// tmpDir receives the per-read output files.
	tmpDir string

	// logger records adapter-level events.
	logger *slog.Logger
}

// NewEDLReader creates an EDLReader for the given tool and loader.
// The binary must already be resolved (see New for the capability check).
func NewEDLReader(binary, loader string, timeout time.Duration, logger *slog.Logger) *EDLReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &EDLReader{
		binary:  binary,
		loader:  loader,
		timeout: timeout,
		tmpDir:  os.TempDir(),
		logger:  logger,
	}
}

// Name identifies the adapter.
func (r *EDLReader) Name() string { return "edl" }

// Read invokes `<tool> peek 0xADDR <size> <outfile> --loader=<loader>`
// and returns the bytes the tool wrote.
//
// Failure classification: a context deadline or a tool timeout maps to
// CodeTimeout so the recovery policy can wait and retry; a tool run that
// completes but produces no readable word maps to CodeNonStandard with
// the tool's output attached as the raw response. Only a missing or
// unrunnable tool surfaces as a transport-fatal error.
func (r *EDLReader) Read(ctx context.Context, address, size uint32) ([]byte, error) {
	outFile := filepath.Join(r.tmpDir, fmt.Sprintf("peek_%08x.bin", address))
	defer os.Remove(outFile)

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.binary,
		"peek",
		fmt.Sprintf("0x%08x", address),
		fmt.Sprintf("%d", size),
		outFile,
		"--loader="+r.loader,
	)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	switch {
	case err == nil:
		// Fall through to reading the output file.
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return nil, &DeviceError{Address: address, Code: CodeTimeout, Raw: output.Bytes()}
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, ctx.Err()
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The tool ran and the device refused the read.
			r.logger.Debug("EDL tool peek failed",
				"address", fmt.Sprintf("0x%08x", address),
				"exitCode", exitErr.ExitCode(),
			)
			return nil, &DeviceError{Address: address, Code: CodeNonStandard, Raw: output.Bytes()}
		}
		// The tool itself could not be run. The transport is gone.
		return nil, fmt.Errorf("EDL tool unavailable: %w", err)
	}

	data, err := os.ReadFile(outFile) //nolint:gosec // Path is built from the address, not user input
	if err != nil || uint32(len(data)) < size {
		return nil, &DeviceError{Address: address, Code: CodeNonStandard, Raw: output.Bytes()}
	}
	return data[:size], nil
}

// New selects a transport adapter via a one-time capability check.
// If the EDL tool resolves on PATH (or is an existing file), the
// subprocess transport is used for the whole session; otherwise
// ErrNoTransport is returned and the caller decides what to do.
//
// Design decision: the original tooling fell back between transports by
// catching per-read failures. Selecting once at construction keeps the
// hot path free of exception-driven branching and makes the active
// adapter a stable fact a scan can log up front.
func New(binary, loader string, timeout time.Duration, logger *slog.Logger) (Reader, error) {
	resolved := binary
	if _, err := os.Stat(binary); err != nil {
		path, lookErr := exec.LookPath(binary)
		if lookErr != nil {
			return nil, fmt.Errorf("%w (looked for %q)", ErrNoTransport, binary)
		}
		resolved = path
	}
	return NewEDLReader(resolved, loader, timeout, logger), nil
}
