package config

import "errors"

// Configuration validation errors.
//
// Design decision: package-level sentinel errors rather than error values
// created inside Validate(). Callers can use errors.Is() for programmatic
// handling while the messages stay human-readable.
var (
	// ErrInvalidRange is returned when the start address is not strictly
	// below the end address.
	ErrInvalidRange = errors.New("invalid scan range: start address must be below end address")

	// ErrInvalidStep is returned when the step is zero.
	ErrInvalidStep = errors.New("invalid step: must be at least 1 byte")

	// ErrDelayTooShort is returned when the inter-read delay is below the
	// hardware-mandated 10ms floor. Faster pacing trips the device-side
	// authentication timeout and drops the link mid-scan.
	ErrDelayTooShort = errors.New("inter-read delay below 10ms hardware floor")

	// ErrInvalidTimeout is returned when the per-read timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid read timeout: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are requested. Only one output format is produced per run.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoResultsLog is returned when the results log path is empty.
	// The durable mirror is a core guarantee of the scan, not an option.
	ErrNoResultsLog = errors.New("results log path must not be empty")

	// ErrProfileNotFound is returned when the requested device profile
	// does not exist in the configuration file.
	ErrProfileNotFound = errors.New("device profile not found in configuration file")
)
