package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vfs19/edlscan/internal/config"
	"github.com/vfs19/edlscan/internal/diaglog"
	"github.com/vfs19/edlscan/internal/model"
	"github.com/vfs19/edlscan/internal/recovery"
	"github.com/vfs19/edlscan/internal/transport"
)

// progressInterval is how many reads pass between progress reports.
const progressInterval = 256

// Scanner errors.
var (
	// ErrInvalidRange is returned when start is not below end.
	ErrInvalidRange = errors.New("scan range start must be below end")

	// ErrInvalidStep is returned when the step is zero.
	ErrInvalidStep = errors.New("scan step must be at least 1")

	// ErrTransportLost is returned when the transport fails outright
	// mid-scan. The report returned alongside it holds everything found
	// before the loss.
	ErrTransportLost = errors.New("transport lost during scan")
)

// Progress is a point-in-time view of a running scan, delivered to the
// progress callback every progressInterval reads. This is observability
// only; nothing in the scan depends on the callback.
type Progress struct {
	// ReadsCompleted is the number of reads issued so far,
	// including retries.
	ReadsCompleted int

	// TotalReads is the expected read count for the full range.
	TotalReads int

	// Percent is ReadsCompleted as a share of TotalReads.
	Percent float64

	// NonZero is the discovery count so far.
	NonZero int

	// Elapsed is the wall-clock time since scan start.
	Elapsed time.Duration
}

// ProgressFunc receives progress reports. Implementations should return
// quickly; the scan blocks while the callback runs.
type ProgressFunc func(Progress)

// Scanner owns one transport for the duration of its scans and drives
// the timed read loop over it.
type Scanner struct {
	reader  transport.Reader
	diag    *diaglog.Log
	results *ResultsWriter
	logger  *slog.Logger

	// delay is the pause before every read. Never below
	// config.MinReadDelay; the constructor clamps rather than trusting
	// the caller, because violating the floor wedges the device.
	delay time.Duration

	// sleep is swappable so tests can observe pacing without waiting.
	sleep func(time.Duration)

	progress ProgressFunc
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scanner) { s.progress = fn }
}

// WithReadDelay sets the inter-read delay. Values below the hardware
// floor are raised to it.
func WithReadDelay(d time.Duration) Option {
	return func(s *Scanner) {
		if d < config.MinReadDelay {
			d = config.MinReadDelay
		}
		s.delay = d
	}
}

// New creates a Scanner over the given transport, diagnostic log, and
// results writer. The transport is held exclusively: no other component
// may issue reads through it while a scan runs.
func New(reader transport.Reader, diag *diaglog.Log, results *ResultsWriter, opts ...Option) *Scanner {
	s := &Scanner{
		reader:  reader,
		diag:    diag,
		results: results,
		delay:   config.MinReadDelay,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Scan walks [startAddr, endAddr) at the given step, reading one word
// per address. It returns the accumulated report in every case:
// complete traversal, cooperative cancellation (report.Cancelled set,
// error is the context's), or transport loss (report.Aborted set, error
// wraps ErrTransportLost). Device-reported errors never terminate the
// scan; they are absorbed by the recovery policy.
func (s *Scanner) Scan(ctx context.Context, startAddr, endAddr, step uint32) (*model.ScanReport, error) {
	if startAddr >= endAddr {
		return nil, ErrInvalidRange
	}
	if step < 1 {
		return nil, ErrInvalidStep
	}

	report := model.NewScanReport(startAddr, endAddr, step)
	history := recovery.NewHistory()
	totalReads := int((endAddr - startAddr) / step)
	started := time.Now()

	s.logger.Info("memory scan started",
		"start", fmt.Sprintf("0x%08x", startAddr),
		"end", fmt.Sprintf("0x%08x", endAddr),
		"step", step,
		"expectedReads", totalReads,
		"transport", s.reader.Name(),
	)

	var scanErr error
	addr := startAddr

loop:
	for addr < endAddr {
		// Cancellation is checked only at iteration boundaries, after
		// the previous outcome is fully recorded, so no record is ever
		// left half-written.
		select {
		case <-ctx.Done():
			report.Cancelled = true
			scanErr = ctx.Err()
			s.logger.Warn("scan interrupted", "address", fmt.Sprintf("0x%08x", addr))
			break loop
		default:
		}

		// The delay paces the device, not the host, so it applies
		// before every read without exception.
		s.sleep(s.delay)

		data, err := s.reader.Read(ctx, addr, transport.WordSize)
		report.ReadsAttempted++

		if err != nil {
			next, fatal := s.handleFailure(report, history, addr, step, err)
			if fatal {
				scanErr = fmt.Errorf("%w: %v", ErrTransportLost, err)
				break loop
			}
			s.reportProgress(report, totalReads, started)
			// next < addr means the increment wrapped past the top of
			// the 32-bit address space; the range is exhausted. Retry
			// keeps next == addr, so this never breaks a retry.
			if next < addr {
				break loop
			}
			addr = next
			continue
		}

		history.RecordSuccess()
		s.recordSuccess(report, addr, data)
		s.reportProgress(report, totalReads, started)
		next := addr + step
		if next < addr {
			break loop
		}
		addr = next
	}

	report.SkipRegions = history.SkipRegions()
	report.Elapsed = time.Since(started)

	s.logger.Info("memory scan finished",
		"readsAttempted", report.ReadsAttempted,
		"nonZero", report.NonZeroCount(),
		"errors", report.ErrorCount,
		"skipRegions", len(report.SkipRegions),
		"elapsed", report.Elapsed.Round(time.Millisecond),
		"cancelled", report.Cancelled,
		"aborted", report.Aborted,
	)

	return report, scanErr
}

// recordSuccess files one successful read: honeypot words are logged at
// low severity and dropped, non-zero words are recorded and mirrored.
func (s *Scanner) recordSuccess(report *model.ScanReport, addr uint32, data []byte) {
	if allZero(data) {
		s.diag.LogResponse(s.reader.Name(), "peek_response", "honeypot", data)
		s.logger.Debug("honeypot word skipped", "address", fmt.Sprintf("0x%08x", addr))
		return
	}

	s.diag.LogResponse(s.reader.Name(), "peek_response", "OK", data)
	report.AddDiscovery(addr, data)
	d := report.Discoveries[len(report.Discoveries)-1]

	if s.results != nil {
		if err := s.results.Append(d); err != nil {
			// Storage trouble must not stop the scan; record and move on.
			s.diag.LogError("storage", "results log write failed: "+err.Error(),
				map[string]string{"address": d.AddressHex()})
		}
	}

	s.logger.Info("non-zero word", "address", d.AddressHex(), "value", d.ValueHex())
}

// handleFailure files one failed read and applies the recovery verdict.
// It returns the next address to scan and whether the failure was
// transport-fatal.
func (s *Scanner) handleFailure(report *model.ScanReport, history *recovery.History, addr, step uint32, err error) (uint32, bool) {
	de, ok := transport.AsDeviceError(err)
	if !ok {
		// Not a device-reported code: the transport itself failed.
		report.Aborted = true
		report.AbortReason = err.Error()
		s.diag.LogError("transport_fatal", err.Error(),
			map[string]string{"address": fmt.Sprintf("0x%08x", addr)})
		return addr, true
	}

	report.ErrorCount++
	s.diag.LogError(errorType(de.Code),
		fmt.Sprintf("device error 0x%02x at 0x%08x", de.Code, addr),
		map[string]string{
			"address": fmt.Sprintf("0x%08x", addr),
			"code":    fmt.Sprintf("0x%02x", de.Code),
		})

	action := recovery.Classify(addr, de.Code, history)
	switch action.Kind {
	case recovery.Retry:
		s.logger.Warn("device timeout, waiting before retry",
			"address", fmt.Sprintf("0x%08x", addr),
			"attemptsRemaining", action.AttemptsRemaining,
		)
		s.sleep(action.Delay)
		return addr, false

	case recovery.SkipRegion:
		s.diag.LogError("skip_region",
			fmt.Sprintf("skipping to 0x%08x (%s)", action.NextAddress, action.Reason),
			map[string]string{
				"from":   fmt.Sprintf("0x%08x", addr),
				"to":     fmt.Sprintf("0x%08x", action.NextAddress),
				"reason": action.Reason,
			})
		s.logger.Warn("skipping region",
			"from", fmt.Sprintf("0x%08x", addr),
			"to", fmt.Sprintf("0x%08x", action.NextAddress),
			"reason", action.Reason,
		)
		return action.NextAddress, false

	default: // recovery.Continue
		return addr + step, false
	}
}

// reportProgress invokes the progress callback every progressInterval reads.
func (s *Scanner) reportProgress(report *model.ScanReport, totalReads int, started time.Time) {
	if s.progress == nil || report.ReadsAttempted%progressInterval != 0 {
		return
	}
	pct := 0.0
	if totalReads > 0 {
		pct = float64(report.ReadsAttempted) / float64(totalReads) * 100
	}
	s.progress(Progress{
		ReadsCompleted: report.ReadsAttempted,
		TotalReads:     totalReads,
		Percent:        pct,
		NonZero:        report.NonZeroCount(),
		Elapsed:        time.Since(started),
	})
}

// errorType maps a device code to its diagnostic error type.
func errorType(code byte) string {
	switch code {
	case transport.CodeNonStandard:
		return "usb_error_0x04"
	case transport.CodeTimeout:
		return "usb_timeout"
	default:
		return "usb_error_unclassified"
	}
}

// allZero reports whether data is the honeypot null pattern.
func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
