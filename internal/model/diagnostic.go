package model

import "time"

// DiagnosticReport is the result of one diagnose run: a sequence of
// probe outcomes plus overall health.
type DiagnosticReport struct {
	// DateRun is when the diagnostics started.
	DateRun time.Time `json:"date_run"`

	// Transport names the adapter the probes ran against.
	Transport string `json:"transport"`

	// Probes holds one result per executed probe, in execution order.
	Probes []ProbeResult `json:"probes"`
}

// ProbeResult is the outcome of a single diagnostic probe.
type ProbeResult struct {
	// Name is the probe name.
	Name string `json:"name"`

	// OK is true if the probe passed.
	OK bool `json:"ok"`

	// Detail describes what the probe observed.
	Detail string `json:"detail,omitempty"`

	// Elapsed is how long the probe took.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// NewDiagnosticReport creates an empty report for the given transport.
func NewDiagnosticReport(transport string) *DiagnosticReport {
	return &DiagnosticReport{
		DateRun:   time.Now(),
		Transport: transport,
	}
}

// AddProbe appends one probe result.
func (r *DiagnosticReport) AddProbe(result ProbeResult) {
	r.Probes = append(r.Probes, result)
}

// Passed reports whether every probe succeeded.
func (r *DiagnosticReport) Passed() bool {
	for _, p := range r.Probes {
		if !p.OK {
			return false
		}
	}
	return true
}

// FailedCount returns the number of failed probes.
func (r *DiagnosticReport) FailedCount() int {
	var n int
	for _, p := range r.Probes {
		if !p.OK {
			n++
		}
	}
	return n
}
