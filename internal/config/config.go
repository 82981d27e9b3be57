package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The address range, step, and delay defaults come from the Snapdragon 460
// QFPROM / shared-RAM layout this tool was written against.
const (
	// DefaultStartAddr is the QFPROM base and shared-RAM region start.
	DefaultStartAddr uint32 = 0x00700000

	// DefaultEndAddr is the end of the default scan range (512 KB span).
	DefaultEndAddr uint32 = 0x00800000

	// DefaultStep is 4 bytes: the device only answers 4-byte aligned
	// word reads, so smaller steps gain nothing and larger steps skip data.
	DefaultStep uint32 = 4

	// MinReadDelay is the hard floor for the inter-read delay.
	// The target's protected memory interface drops the link when peek
	// commands arrive faster than roughly one per 10ms. This is a
	// hardware constraint, not a tunable: Validate rejects anything lower.
	MinReadDelay = 10 * time.Millisecond

	// DefaultReadDelay is the delay applied before every read.
	DefaultReadDelay = MinReadDelay

	// DefaultReadTimeout bounds a single transport read. USB bulk reads
	// against a wedged loader otherwise hang indefinitely.
	DefaultReadTimeout = 5 * time.Second

	// DefaultResultsLog is where non-zero discoveries are mirrored,
	// one line per word, as the scan runs.
	DefaultResultsLog = "memory_scan.log"

	// DefaultDiagnosticLog is where the diagnostic snapshot is saved.
	DefaultDiagnosticLog = "sla_response_log.json"

	// DefaultChallengeVault is the append-only hex dump of SLA
	// challenges observed on the link.
	DefaultChallengeVault = "sla_challenge_vault.hex"

	// DefaultEDLBinary is the external EDL tool used by the subprocess
	// transport when no direct link is available.
	DefaultEDLBinary = "edl"

	// DefaultLoader is the Firehose programmer handed to the EDL tool.
	DefaultLoader = "prog_firehose_ddr_fwupdate.elf"

	// DefaultOutputDir receives extracted artifacts from analysis runs.
	DefaultOutputDir = "output"

	// AppName is the application name used for XDG directory paths.
	AppName = "edlscan"
)

// Config holds all options for a scan or analysis run.
//
// Design decision: a single flat struct instead of nested sub-configs.
// The option count is manageable, and nesting would add complexity
// without significant benefit.
type Config struct {
	// StartAddr is the first address to scan (inclusive).
	StartAddr uint32

	// EndAddr is the end of the scan range (exclusive).
	// Must be strictly greater than StartAddr.
	EndAddr uint32

	// Step is the address increment between reads, in bytes.
	// Must be at least 1; 4 keeps reads word-aligned.
	Step uint32

	// ReadDelay is the mandatory pause before each read. Values below
	// MinReadDelay are rejected rather than clamped so that the user
	// learns about the hardware constraint instead of silently getting
	// different behavior than requested.
	ReadDelay time.Duration

	// ReadTimeout bounds each individual transport read.
	ReadTimeout time.Duration

	// ResultsLogPath is the durable mirror for non-zero discoveries.
	ResultsLogPath string

	// DiagnosticLogPath is where the diagnostic snapshot is written.
	DiagnosticLogPath string

	// ChallengeVaultPath is the append-only SLA challenge dump.
	ChallengeVaultPath string

	// EDLBinary is the path of the external EDL tool for the
	// subprocess transport.
	EDLBinary string

	// Loader is the Firehose programmer path passed to the EDL tool.
	Loader string

	// OutputDir receives extracted kernels, ramdisks, and certificates.
	OutputDir string

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// JSONReport selects JSON report output.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit .edlscan file path, if given.
	ConfigFilePath string

	// Profiles holds device profiles loaded from the config file.
	Profiles *File

	// Profile selects a named device profile from Profiles.
	Profile string

	// DBDir is the directory for the scan-history SQLite database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB persists scan sessions for later comparison.
	SaveToDB bool
}

// NewConfig creates a Config populated with defaults.
//
// Design decision: a constructor rather than zero values because most
// defaults are non-zero (addresses, delays, paths), and the constructor
// doubles as documentation of what they are.
func NewConfig() *Config {
	return &Config{
		StartAddr:          DefaultStartAddr,
		EndAddr:            DefaultEndAddr,
		Step:               DefaultStep,
		ReadDelay:          DefaultReadDelay,
		ReadTimeout:        DefaultReadTimeout,
		ResultsLogPath:     DefaultResultsLog,
		DiagnosticLogPath:  DefaultDiagnosticLog,
		ChallengeVaultPath: DefaultChallengeVault,
		EDLBinary:          DefaultEDLBinary,
		Loader:             DefaultLoader,
		OutputDir:          DefaultOutputDir,
	}
}

// XDGDataDir returns the XDG data directory for edlscan.
// On Linux: ~/.local/share/edlscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for edlscan.
// On Linux: ~/.config/edlscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration, returning the first problem found.
// It is called once after flag parsing, before any device contact.
func (c *Config) Validate() error {
	if c.StartAddr >= c.EndAddr {
		return ErrInvalidRange
	}
	if c.Step < 1 {
		return ErrInvalidStep
	}
	if c.ReadDelay < MinReadDelay {
		return ErrDelayTooShort
	}
	if c.ReadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.ResultsLogPath == "" {
		return ErrNoResultsLog
	}
	return nil
}

// ApplyProfile overlays the named device profile, if one is configured.
// Precedence is flags > profile > built-in defaults: explicit keys name
// the profile fields the user already pinned on the command line, and
// those are never overridden. A nil map means nothing was pinned.
func (c *Config) ApplyProfile(name string, explicit map[string]bool) error {
	if c.Profiles == nil {
		if name == "" {
			return nil
		}
		return ErrProfileNotFound
	}

	p, ok := c.Profiles.Profiles[name]
	if name == "" {
		p = c.Profiles.Defaults
	} else if !ok {
		return ErrProfileNotFound
	}

	if p.StartAddr != "" && !explicit["start_addr"] {
		v, err := parseHexAddr(p.StartAddr)
		if err != nil {
			return err
		}
		c.StartAddr = v
	}
	if p.EndAddr != "" && !explicit["end_addr"] {
		v, err := parseHexAddr(p.EndAddr)
		if err != nil {
			return err
		}
		c.EndAddr = v
	}
	if p.Step > 0 && !explicit["step"] {
		c.Step = uint32(p.Step)
	}
	if p.ReadDelay > 0 && !explicit["read_delay"] {
		c.ReadDelay = time.Duration(p.ReadDelay)
	}
	if p.Loader != "" && !explicit["loader"] {
		c.Loader = p.Loader
	}
	if p.EDLBinary != "" && !explicit["edl_binary"] {
		c.EDLBinary = p.EDLBinary
	}
	return nil
}
