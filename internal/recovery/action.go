package recovery

import "time"

// Kind discriminates recovery actions.
type Kind int

// Recovery action kinds.
const (
	// Continue advances to the next address; the failed word is skipped.
	Continue Kind = iota

	// SkipRegion abandons a range and resumes at NextAddress.
	SkipRegion

	// Retry re-reads the same address after Delay.
	Retry

	// Abort terminates the scan. The classifier never emits this; it
	// exists for caller-level conditions such as transport loss.
	Abort
)

// String returns the action kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case Continue:
		return "continue"
	case SkipRegion:
		return "skip_region"
	case Retry:
		return "retry"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Action is the classifier's verdict for one failure.
type Action struct {
	// Kind selects which fields below are meaningful.
	Kind Kind

	// NextAddress is where the scan resumes (SkipRegion only).
	NextAddress uint32

	// BoundarySize is the size of the skipped unit: the 4 KiB region
	// for 0x04 escalation, one word for an unresolved timeout.
	BoundarySize uint32

	// Delay is how long to wait before re-reading (Retry only).
	Delay time.Duration

	// AttemptsRemaining is the retry budget left after this attempt
	// (Retry only).
	AttemptsRemaining int

	// Reason describes the action for the diagnostic log.
	Reason string
}

// AbortAction builds the caller-level abort verdict.
func AbortAction(reason string) Action {
	return Action{Kind: Abort, Reason: reason}
}
