package recovery

import (
	"testing"
	"time"

	"github.com/vfs19/edlscan/internal/transport"
)

// TestClassify_NonStandardRun tests the 0x04 region-skip escalation.
func TestClassify_NonStandardRun(t *testing.T) {
	t.Parallel()

	t.Run("five consecutive errors in one region trigger a region skip", func(t *testing.T) {
		t.Parallel()

		h := NewHistory()
		base := uint32(0x00701000)

		// First four are absorbed one word at a time.
		for i := uint32(0); i < 4; i++ {
			action := Classify(base+i*4, transport.CodeNonStandard, h)
			if action.Kind != Continue {
				t.Fatalf("occurrence %d: kind = %s, want continue", i+1, action.Kind)
			}
		}
		if h.ConsecutiveErrors() != 4 {
			t.Errorf("consecutive errors = %d, want 4", h.ConsecutiveErrors())
		}

		action := Classify(base+16, transport.CodeNonStandard, h)
		if action.Kind != SkipRegion {
			t.Fatalf("occurrence 5: kind = %s, want skip_region", action.Kind)
		}
		if action.NextAddress != 0x00702000 {
			t.Errorf("next address = 0x%08x, want 0x00702000", action.NextAddress)
		}
		if action.BoundarySize != RegionSize {
			t.Errorf("boundary size = %d, want %d", action.BoundarySize, RegionSize)
		}

		regions := h.SkipRegions()
		if len(regions) != 1 {
			t.Fatalf("got %d skip regions, want 1", len(regions))
		}
		if regions[0].Start != 0x00701000 || regions[0].End != 0x00702000 {
			t.Errorf("region = %s, want 0x00701000-0x00702000", regions[0])
		}
		if regions[0].Reason != ReasonRepeatedErrors {
			t.Errorf("reason = %q, want %q", regions[0].Reason, ReasonRepeatedErrors)
		}
		if !regions[0].Contains(base + 16) {
			t.Error("skip region should contain the triggering address")
		}
	})

	t.Run("run resets when the region changes", func(t *testing.T) {
		t.Parallel()

		h := NewHistory()

		// Three errors at the end of one region, then two in the next:
		// neither region reaches the threshold.
		for i := uint32(0); i < 3; i++ {
			Classify(0x00701FF0+i*4, transport.CodeNonStandard, h)
		}
		for i := uint32(0); i < 2; i++ {
			action := Classify(0x00702000+i*4, transport.CodeNonStandard, h)
			if action.Kind != Continue {
				t.Fatalf("cross-region error: kind = %s, want continue", action.Kind)
			}
		}
		if h.ConsecutiveErrors() != 2 {
			t.Errorf("consecutive errors = %d, want 2 after region change", h.ConsecutiveErrors())
		}
		if len(h.SkipRegions()) != 0 {
			t.Errorf("got %d skip regions, want 0", len(h.SkipRegions()))
		}
	})

	t.Run("success resets the run", func(t *testing.T) {
		t.Parallel()

		h := NewHistory()
		base := uint32(0x00701000)

		for i := uint32(0); i < 4; i++ {
			Classify(base+i*4, transport.CodeNonStandard, h)
		}
		h.RecordSuccess()

		action := Classify(base+16, transport.CodeNonStandard, h)
		if action.Kind != Continue {
			t.Errorf("kind after reset = %s, want continue", action.Kind)
		}
		if h.ConsecutiveErrors() != 1 {
			t.Errorf("consecutive errors = %d, want 1", h.ConsecutiveErrors())
		}
	})

	t.Run("different code breaks the run", func(t *testing.T) {
		t.Parallel()

		h := NewHistory()
		base := uint32(0x00701000)

		for i := uint32(0); i < 4; i++ {
			Classify(base+i*4, transport.CodeNonStandard, h)
		}
		// Unclassified code resets both the 0x04 run and timeout count.
		if action := Classify(base+16, 0x7e, h); action.Kind != Continue {
			t.Fatalf("unclassified code: kind = %s, want continue", action.Kind)
		}

		action := Classify(base+20, transport.CodeNonStandard, h)
		if action.Kind != Continue {
			t.Errorf("kind after foreign code = %s, want continue", action.Kind)
		}
		if h.ConsecutiveErrors() != 1 {
			t.Errorf("consecutive errors = %d, want 1", h.ConsecutiveErrors())
		}
	})
}

// TestClassify_TimeoutEscalation tests the 0xff retry budget.
func TestClassify_TimeoutEscalation(t *testing.T) {
	t.Parallel()

	t.Run("three retries of two seconds then a word skip", func(t *testing.T) {
		t.Parallel()

		h := NewHistory()
		addr := uint32(0x00703000)

		var totalDelay time.Duration
		for i := 0; i < 3; i++ {
			action := Classify(addr, transport.CodeTimeout, h)
			if action.Kind != Retry {
				t.Fatalf("timeout %d: kind = %s, want retry", i+1, action.Kind)
			}
			if action.Delay != RetryDelay {
				t.Errorf("timeout %d: delay = %s, want %s", i+1, action.Delay, RetryDelay)
			}
			if action.AttemptsRemaining != MaxTimeoutRetries-(i+1) {
				t.Errorf("timeout %d: attempts remaining = %d, want %d",
					i+1, action.AttemptsRemaining, MaxTimeoutRetries-(i+1))
			}
			totalDelay += action.Delay
		}
		// The budget is three waits of two seconds each.
		if totalDelay != 6*time.Second {
			t.Errorf("total retry delay = %s, want 6s", totalDelay)
		}

		action := Classify(addr, transport.CodeTimeout, h)
		if action.Kind != SkipRegion {
			t.Fatalf("fourth timeout: kind = %s, want skip_region", action.Kind)
		}
		if action.NextAddress != addr+transport.WordSize {
			t.Errorf("next address = 0x%08x, want 0x%08x", action.NextAddress, addr+transport.WordSize)
		}
		if action.BoundarySize != transport.WordSize {
			t.Errorf("boundary size = %d, want one word", action.BoundarySize)
		}

		regions := h.SkipRegions()
		if len(regions) != 1 {
			t.Fatalf("got %d skip regions, want 1", len(regions))
		}
		if regions[0].Reason != ReasonUnresolvedTimeout {
			t.Errorf("reason = %q, want %q", regions[0].Reason, ReasonUnresolvedTimeout)
		}
		if regions[0].End-regions[0].Start != transport.WordSize {
			t.Errorf("skip width = %d, want one word", regions[0].End-regions[0].Start)
		}
	})

	t.Run("success between timeouts resets the budget", func(t *testing.T) {
		t.Parallel()

		h := NewHistory()
		addr := uint32(0x00703000)

		Classify(addr, transport.CodeTimeout, h)
		Classify(addr, transport.CodeTimeout, h)
		Classify(addr, transport.CodeTimeout, h)
		h.RecordSuccess()

		// Fresh budget: this is timeout one again, not four.
		action := Classify(addr, transport.CodeTimeout, h)
		if action.Kind != Retry {
			t.Errorf("kind after success = %s, want retry", action.Kind)
		}
		if action.AttemptsRemaining != MaxTimeoutRetries-1 {
			t.Errorf("attempts remaining = %d, want %d", action.AttemptsRemaining, MaxTimeoutRetries-1)
		}
	})

	t.Run("timeout at a different address starts a new count", func(t *testing.T) {
		t.Parallel()

		h := NewHistory()

		Classify(0x00703000, transport.CodeTimeout, h)
		Classify(0x00703000, transport.CodeTimeout, h)

		action := Classify(0x00703004, transport.CodeTimeout, h)
		if action.Kind != Retry {
			t.Fatalf("kind = %s, want retry", action.Kind)
		}
		if action.AttemptsRemaining != MaxTimeoutRetries-1 {
			t.Errorf("attempts remaining = %d, want fresh budget", action.AttemptsRemaining)
		}
	})

	t.Run("timeout breaks a 0x04 run and vice versa", func(t *testing.T) {
		t.Parallel()

		h := NewHistory()
		base := uint32(0x00701000)

		for i := uint32(0); i < 4; i++ {
			Classify(base+i*4, transport.CodeNonStandard, h)
		}
		Classify(base+16, transport.CodeTimeout, h)

		// The 0x04 run restarted, so four more are needed again.
		action := Classify(base+20, transport.CodeNonStandard, h)
		if action.Kind != Continue {
			t.Errorf("kind = %s, want continue", action.Kind)
		}
		if h.ConsecutiveErrors() != 1 {
			t.Errorf("consecutive errors = %d, want 1", h.ConsecutiveErrors())
		}
	})
}

// TestClassify_UnclassifiedCode tests handling of unfamiliar codes.
func TestClassify_UnclassifiedCode(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	action := Classify(0x00700000, 0x33, h)
	if action.Kind != Continue {
		t.Errorf("kind = %s, want continue", action.Kind)
	}
	if len(h.SkipRegions()) != 0 {
		t.Error("unclassified code should not create a skip region")
	}
}

// TestHistory_FreshPerScan tests that a new history carries no state.
func TestHistory_FreshPerScan(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	base := uint32(0x00701000)
	for i := uint32(0); i < 5; i++ {
		Classify(base+i*4, transport.CodeNonStandard, h)
	}
	if len(h.SkipRegions()) != 1 {
		t.Fatalf("got %d skip regions, want 1", len(h.SkipRegions()))
	}

	// A fresh history is a fresh scan: nothing carries over.
	h2 := NewHistory()
	if len(h2.SkipRegions()) != 0 || h2.ConsecutiveErrors() != 0 {
		t.Error("new history should start empty")
	}
}
