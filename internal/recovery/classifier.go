package recovery

import (
	"time"

	"github.com/vfs19/edlscan/internal/model"
	"github.com/vfs19/edlscan/internal/transport"
)

// Policy constants. These values were established empirically against
// the target hardware and are part of the recovery contract, not tuning
// knobs.
const (
	// RegionSize is the skip granularity for repeated 0x04 errors.
	// Protection is applied per 4 KiB page on the target, so once a page
	// has proven hostile there is nothing left to learn inside it.
	RegionSize uint32 = 4096

	// ErrorThreshold is how many consecutive 0x04 errors within one
	// region trigger the region skip.
	ErrorThreshold uint32 = 5

	// RetryDelay is the wait before re-reading after a timeout.
	RetryDelay = 2 * time.Second

	// MaxTimeoutRetries is the retry budget per address. The fourth
	// consecutive timeout at one address escalates to a word skip.
	MaxTimeoutRetries = 3
)

// Skip-region reasons recorded in the report.
const (
	// ReasonRepeatedErrors marks a region abandoned after the 0x04 threshold.
	ReasonRepeatedErrors = "0x04_errors"

	// ReasonUnresolvedTimeout marks a single word abandoned after the
	// timeout retry budget ran out.
	ReasonUnresolvedTimeout = "unresolved_timeout"
)

// History is the rolling error state for one scan invocation.
// It is owned exclusively by the scan loop and reset at scan start;
// nothing accumulates across scans.
type History struct {
	// consecutive counts back-to-back 0x04 errors within region.
	consecutive uint32

	// region is the 4 KiB-aligned region of the current 0x04 run.
	region uint32

	// lastCode is the most recent error code, valid when hasLast is set.
	lastCode byte
	hasLast  bool

	// timeoutAddr and timeoutCount track consecutive 0xff failures at
	// one address.
	timeoutAddr  uint32
	timeoutCount int

	// skipRegions accumulates every range the policy abandoned.
	skipRegions []model.SkipRegion
}

// NewHistory creates an empty history for a fresh scan.
func NewHistory() *History {
	return &History{skipRegions: make([]model.SkipRegion, 0)}
}

// SkipRegions returns the regions abandoned so far, in order.
func (h *History) SkipRegions() []model.SkipRegion {
	return h.skipRegions
}

// ConsecutiveErrors returns the current 0x04 run length, for diagnostics.
func (h *History) ConsecutiveErrors() uint32 {
	return h.consecutive
}

// RecordSuccess resets all counters. A successful read anywhere means
// the device is live, so stale error runs must not influence later
// classification at unrelated addresses.
func (h *History) RecordSuccess() {
	h.consecutive = 0
	h.hasLast = false
	h.timeoutCount = 0
}

// regionStart rounds addr down to its RegionSize boundary.
func regionStart(addr uint32) uint32 {
	return addr &^ (RegionSize - 1)
}

// Classify maps one device failure onto a recovery action, updating the
// history as a side effect. It never blocks and never emits Abort.
func Classify(addr uint32, code byte, h *History) Action {
	switch code {
	case transport.CodeNonStandard:
		return classifyNonStandard(addr, h)
	case transport.CodeTimeout:
		return classifyTimeout(addr, h)
	default:
		// An unfamiliar code still means the device answered, so the
		// 0x04 and timeout runs are broken. Skip just this word.
		h.consecutive = 0
		h.timeoutCount = 0
		h.lastCode = code
		h.hasLast = true
		return Action{Kind: Continue, Reason: "unclassified_error"}
	}
}

// classifyNonStandard handles the 0x04 honeypot/protected-region signal.
// One 0x04 skips one word; ErrorThreshold consecutive 0x04s within the
// same 4 KiB region abandon the rest of that region.
func classifyNonStandard(addr uint32, h *History) Action {
	start := regionStart(addr)

	if h.hasLast && h.lastCode == transport.CodeNonStandard && h.region == start {
		h.consecutive++
	} else {
		h.consecutive = 1
		h.region = start
	}
	h.lastCode = transport.CodeNonStandard
	h.hasLast = true
	h.timeoutCount = 0

	if h.consecutive < ErrorThreshold {
		return Action{Kind: Continue, Reason: "protected_word"}
	}

	// Threshold reached: abandon the region. The current address rounds
	// down to the region start and the scan resumes at the next boundary,
	// even if addr is already boundary-aligned, so progress is guaranteed.
	end := start + RegionSize
	h.skipRegions = append(h.skipRegions, model.SkipRegion{
		Start:  start,
		End:    end,
		Reason: ReasonRepeatedErrors,
	})
	h.consecutive = 0
	h.hasLast = false

	return Action{
		Kind:         SkipRegion,
		NextAddress:  end,
		BoundarySize: RegionSize,
		Reason:       ReasonRepeatedErrors,
	}
}

// classifyTimeout handles 0xff timeout/disconnect failures with a
// bounded wait-and-retry, escalating to a single-word skip when the
// budget is exhausted.
func classifyTimeout(addr uint32, h *History) Action {
	if h.hasLast && h.lastCode == transport.CodeTimeout && h.timeoutAddr == addr {
		h.timeoutCount++
	} else {
		h.timeoutCount = 1
		h.timeoutAddr = addr
	}
	h.lastCode = transport.CodeTimeout
	h.hasLast = true
	h.consecutive = 0

	if h.timeoutCount <= MaxTimeoutRetries {
		return Action{
			Kind:              Retry,
			Delay:             RetryDelay,
			AttemptsRemaining: MaxTimeoutRetries - h.timeoutCount,
			Reason:            "timeout_recovery",
		}
	}

	// Retry budget exhausted: give up on this one word, not the region.
	h.timeoutCount = 0
	h.hasLast = false
	h.skipRegions = append(h.skipRegions, model.SkipRegion{
		Start:  addr,
		End:    addr + transport.WordSize,
		Reason: ReasonUnresolvedTimeout,
	})

	return Action{
		Kind:         SkipRegion,
		NextAddress:  addr + transport.WordSize,
		BoundarySize: transport.WordSize,
		Reason:       ReasonUnresolvedTimeout,
	}
}
