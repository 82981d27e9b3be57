package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vfs19/edlscan/internal/diaglog"
	"github.com/vfs19/edlscan/internal/model"
	"github.com/vfs19/edlscan/internal/recovery"
	"github.com/vfs19/edlscan/internal/transport"
)

// ReadProbe issues a single word read at a known address and records
// how the device answered. A device error is a finding, not a probe
// failure: the point is to learn how the link behaves.
type ReadProbe struct {
	// Reader is the transport to probe.
	Reader transport.Reader

	// Address is the word to read. Pick an address known to be safe;
	// the default scan start is a reasonable choice.
	Address uint32

	// Diag receives the response or error entry, nil to skip.
	Diag *diaglog.Log
}

// Name returns the probe name.
func (p *ReadProbe) Name() string { return "single-read" }

// Do executes one read and records the outcome.
func (p *ReadProbe) Do(ctx context.Context, report *model.DiagnosticReport) error {
	start := time.Now()
	data, err := p.Reader.Read(ctx, p.Address, transport.WordSize)
	elapsed := time.Since(start)

	if err != nil {
		de, ok := transport.AsDeviceError(err)
		if !ok {
			// Transport itself failed; nothing else will work.
			return fmt.Errorf("transport lost during read probe: %w", err)
		}

		if p.Diag != nil {
			p.Diag.LogError("probe_device_error", de.Error(), map[string]string{
				"address": fmt.Sprintf("0x%08x", p.Address),
			})
		}
		report.AddProbe(model.ProbeResult{
			Name:    p.Name(),
			OK:      false,
			Detail:  fmt.Sprintf("device error 0x%02x at 0x%08x", de.Code, p.Address),
			Elapsed: elapsed,
		})
		return nil
	}

	if p.Diag != nil {
		p.Diag.LogResponse(p.Reader.Name(), "probe_read", "success", data)
	}
	report.AddProbe(model.ProbeResult{
		Name:    p.Name(),
		OK:      true,
		Detail:  fmt.Sprintf("read 0x%08x returned % x", p.Address, data),
		Elapsed: elapsed,
	})
	return nil
}

// LatencyProbe samples read latency at one address. Reads are spaced by
// Delay; the device cannot absorb back-to-back peeks.
type LatencyProbe struct {
	// Reader is the transport to probe.
	Reader transport.Reader

	// Address is the word to read repeatedly.
	Address uint32

	// Samples is the number of reads to issue. Zero means 5.
	Samples int

	// Delay is the pause between reads.
	Delay time.Duration

	// Sleep is the sleep function, replaceable in tests.
	// Nil means time.Sleep.
	Sleep func(time.Duration)
}

// Name returns the probe name.
func (p *LatencyProbe) Name() string { return "read-latency" }

// Do samples latency and records min/avg/max.
func (p *LatencyProbe) Do(ctx context.Context, report *model.DiagnosticReport) error {
	samples := p.Samples
	if samples <= 0 {
		samples = 5
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var total, min, max time.Duration
	var failures int
	probeStart := time.Now()

	for i := 0; i < samples; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && p.Delay > 0 {
			sleep(p.Delay)
		}

		start := time.Now()
		_, err := p.Reader.Read(ctx, p.Address, transport.WordSize)
		elapsed := time.Since(start)

		if err != nil {
			if _, ok := transport.AsDeviceError(err); !ok {
				return fmt.Errorf("transport lost during latency probe: %w", err)
			}
			failures++
			continue
		}

		total += elapsed
		if min == 0 || elapsed < min {
			min = elapsed
		}
		if elapsed > max {
			max = elapsed
		}
	}

	succeeded := samples - failures
	if succeeded == 0 {
		report.AddProbe(model.ProbeResult{
			Name:    p.Name(),
			OK:      false,
			Detail:  fmt.Sprintf("all %d sample reads failed", samples),
			Elapsed: time.Since(probeStart),
		})
		return nil
	}

	report.AddProbe(model.ProbeResult{
		Name: p.Name(),
		OK:   true,
		Detail: fmt.Sprintf("%d/%d reads ok, latency min=%s avg=%s max=%s",
			succeeded, samples, min, total/time.Duration(succeeded), max),
		Elapsed: time.Since(probeStart),
	})
	return nil
}

// RecoveryProbe rehearses the error recovery policy offline, without
// touching the device. It feeds synthetic error sequences through the
// classifier and verifies the expected escalations fire. A failure here
// means the binary itself is unfit to scan, whatever the link looks
// like.
type RecoveryProbe struct{}

// Name returns the probe name.
func (p *RecoveryProbe) Name() string { return "recovery-rehearsal" }

// Do verifies both escalation paths of the recovery policy.
func (p *RecoveryProbe) Do(ctx context.Context, report *model.DiagnosticReport) error {
	start := time.Now()

	if err := p.rehearseRegionSkip(); err != nil {
		report.AddProbe(model.ProbeResult{
			Name:    p.Name(),
			OK:      false,
			Detail:  err.Error(),
			Elapsed: time.Since(start),
		})
		return nil
	}
	if err := p.rehearseTimeoutEscalation(); err != nil {
		report.AddProbe(model.ProbeResult{
			Name:    p.Name(),
			OK:      false,
			Detail:  err.Error(),
			Elapsed: time.Since(start),
		})
		return nil
	}

	report.AddProbe(model.ProbeResult{
		Name: p.Name(),
		OK:   true,
		Detail: fmt.Sprintf("region skip after %d consecutive 0x04, timeout escalation after %d retries",
			recovery.ErrorThreshold, recovery.MaxTimeoutRetries),
		Elapsed: time.Since(start),
	})
	return nil
}

// rehearseRegionSkip verifies that a run of 0x04 errors inside one
// region escalates to a region skip.
func (p *RecoveryProbe) rehearseRegionSkip() error {
	h := recovery.NewHistory()
	base := uint32(0x00701000)

	for i := uint32(0); i < recovery.ErrorThreshold-1; i++ {
		action := recovery.Classify(base+i*transport.WordSize, transport.CodeNonStandard, h)
		if action.Kind != recovery.Continue {
			return fmt.Errorf("0x04 run: occurrence %d produced %s, want Continue", i+1, action.Kind)
		}
	}

	action := recovery.Classify(base+(recovery.ErrorThreshold-1)*transport.WordSize, transport.CodeNonStandard, h)
	if action.Kind != recovery.SkipRegion {
		return fmt.Errorf("0x04 run: occurrence %d produced %s, want SkipRegion", recovery.ErrorThreshold, action.Kind)
	}
	if action.NextAddress != base+recovery.RegionSize {
		return fmt.Errorf("0x04 run: next address 0x%08x, want 0x%08x", action.NextAddress, base+recovery.RegionSize)
	}
	return nil
}

// rehearseTimeoutEscalation verifies that timeouts retry with delay and
// then escalate to a single-word skip.
func (p *RecoveryProbe) rehearseTimeoutEscalation() error {
	h := recovery.NewHistory()
	addr := uint32(0x00703000)

	for i := 0; i < recovery.MaxTimeoutRetries; i++ {
		action := recovery.Classify(addr, transport.CodeTimeout, h)
		if action.Kind != recovery.Retry {
			return fmt.Errorf("timeout %d produced %s, want Retry", i+1, action.Kind)
		}
		if action.Delay != recovery.RetryDelay {
			return fmt.Errorf("timeout %d delay %s, want %s", i+1, action.Delay, recovery.RetryDelay)
		}
	}

	action := recovery.Classify(addr, transport.CodeTimeout, h)
	if action.Kind != recovery.SkipRegion {
		return fmt.Errorf("timeout escalation produced %s, want SkipRegion", action.Kind)
	}
	return nil
}
