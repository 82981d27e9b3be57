package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vfs19/edlscan/internal/config"
	"github.com/vfs19/edlscan/internal/database"
	"github.com/vfs19/edlscan/internal/diaglog"
	applog "github.com/vfs19/edlscan/internal/log"
	"github.com/vfs19/edlscan/internal/model"
	"github.com/vfs19/edlscan/internal/report"
	"github.com/vfs19/edlscan/internal/scanner"
	"github.com/vfs19/edlscan/internal/transport"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan device memory for SLA certificates and fuse data",
		Long: `Scan walks a memory range of a Qualcomm device in EDL mode, one word
at a time, through an external EDL tool.

Every non-zero word is appended to a durable results log as it is found,
so an interrupted scan loses nothing. Device error responses (honeypot
0x04 answers, timeouts) are absorbed by a recovery policy that skips
hostile regions instead of aborting.

Examples:
  # Scan the default QFPROM range
  edlscan scan

  # Scan a custom range with a slower pace
  edlscan scan --start-addr 0x00700000 --end-addr 0x00710000 --delay 50ms

  # Use a named device profile from .edlscan
  edlscan scan --profile oppo-a53

  # Output JSON report to a file
  edlscan scan --json -o scan-report.json

Configuration file (.edlscan) example:
  defaults:
    read_delay: 20ms
  profiles:
    oppo-a53:
      start_addr: "0x00700000"
      end_addr: "0x00800000"
      loader: prog_firehose_ddr_fwupdate.elf`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	// Address range flags
	cmd.Flags().StringP("start-addr", "s", fmt.Sprintf("0x%08x", config.DefaultStartAddr),
		"First address to scan (hex, inclusive)")
	cmd.Flags().StringP("end-addr", "e", fmt.Sprintf("0x%08x", config.DefaultEndAddr),
		"End of scan range (hex, exclusive)")
	cmd.Flags().Uint32("step", config.DefaultStep,
		"Address increment between reads in bytes")

	// Pacing flags
	cmd.Flags().DurationP("delay", "d", config.DefaultReadDelay,
		fmt.Sprintf("Delay before each read (minimum %s)", config.MinReadDelay))
	cmd.Flags().DurationP("timeout", "t", config.DefaultReadTimeout,
		"Timeout for a single read")

	// Transport flags
	cmd.Flags().String("edl-binary", config.DefaultEDLBinary,
		"Path of the external EDL tool")
	cmd.Flags().String("loader", config.DefaultLoader,
		"Firehose programmer passed to the EDL tool")

	// Log destination flags
	cmd.Flags().String("results-log", config.DefaultResultsLog,
		"Durable mirror for non-zero discoveries (one line per word)")
	cmd.Flags().String("diagnostic-log", config.DefaultDiagnosticLog,
		"Path for the diagnostic snapshot")
	cmd.Flags().String("vault", config.DefaultChallengeVault,
		"Append-only hex dump of observed SLA challenges")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .edlscan in current or home directory)")
	cmd.Flags().StringP("profile", "p", "",
		"Named device profile from the configuration file")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("no-db", false,
		"Skip saving the session to the scan-history database")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with sensitive-value masking
	logger := applog.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown.
	// The scan loop notices the cancel at the next iteration boundary
	// and returns the partial report.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, finishing current read...")
		cancel()
	}()

	return runScan(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	startAddr, err := cmd.Flags().GetString("start-addr")
	if err != nil {
		return nil, err
	}
	cfg.StartAddr, err = config.ParseHexAddr(startAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid --start-addr: %w", err)
	}

	endAddr, err := cmd.Flags().GetString("end-addr")
	if err != nil {
		return nil, err
	}
	cfg.EndAddr, err = config.ParseHexAddr(endAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid --end-addr: %w", err)
	}

	cfg.Step, err = cmd.Flags().GetUint32("step")
	if err != nil {
		return nil, err
	}

	cfg.ReadDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.ReadTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.EDLBinary, err = cmd.Flags().GetString("edl-binary")
	if err != nil {
		return nil, err
	}

	cfg.Loader, err = cmd.Flags().GetString("loader")
	if err != nil {
		return nil, err
	}

	cfg.ResultsLogPath, err = cmd.Flags().GetString("results-log")
	if err != nil {
		return nil, err
	}

	cfg.DiagnosticLogPath, err = cmd.Flags().GetString("diagnostic-log")
	if err != nil {
		return nil, err
	}

	cfg.ChallengeVaultPath, err = cmd.Flags().GetString("vault")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.Profile, err = cmd.Flags().GetString("profile")
	if err != nil {
		return nil, err
	}

	// Load device profiles from config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently continue without profiles.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.Profiles, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		// Flags the user set on the command line win over profile values.
		explicit := map[string]bool{
			"start_addr": cmd.Flags().Changed("start-addr"),
			"end_addr":   cmd.Flags().Changed("end-addr"),
			"step":       cmd.Flags().Changed("step"),
			"read_delay": cmd.Flags().Changed("delay"),
			"loader":     cmd.Flags().Changed("loader"),
			"edl_binary": cmd.Flags().Changed("edl-binary"),
		}
		if err := cfg.ApplyProfile(cfg.Profile, explicit); err != nil {
			return nil, fmt.Errorf("failed to apply profile %q: %w", cfg.Profile, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else if cfg.Profile != "" {
		return nil, fmt.Errorf("profile %q requested but no configuration file found", cfg.Profile)
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()

	return cfg, nil
}

// runScan executes the scan.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting scan",
		"start", fmt.Sprintf("0x%08x", cfg.StartAddr),
		"end", fmt.Sprintf("0x%08x", cfg.EndAddr),
		"step", cfg.Step,
		"delay", cfg.ReadDelay,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.ScanDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// One-time transport capability check: the EDL tool and loader are
	// verified here, before the first read, not rediscovered per read.
	reader, err := transport.New(cfg.EDLBinary, cfg.Loader, cfg.ReadTimeout, logger)
	if err != nil {
		return err
	}

	diag := diaglog.New(
		diaglog.WithVaultPath(cfg.ChallengeVaultPath),
		diaglog.WithLogger(logger),
	)

	results, err := scanner.NewResultsWriter(cfg.ResultsLogPath)
	if err != nil {
		return fmt.Errorf("failed to open results log: %w", err)
	}
	defer results.Close()

	s := scanner.New(reader, diag, results,
		scanner.WithLogger(logger),
		scanner.WithReadDelay(cfg.ReadDelay),
		scanner.WithProgress(printProgress),
	)

	fmt.Printf("Scanning 0x%08x - 0x%08x (step %d, delay %s)...\n",
		cfg.StartAddr, cfg.EndAddr, cfg.Step, cfg.ReadDelay)

	scanReport, scanErr := s.Scan(ctx, cfg.StartAddr, cfg.EndAddr, cfg.Step)
	if scanReport == nil {
		return scanErr
	}

	switch {
	case scanReport.Aborted:
		fmt.Fprintf(os.Stderr, "\nScan aborted: %s (partial results kept)\n", scanReport.AbortReason)
	case scanReport.Cancelled:
		fmt.Fprintln(os.Stderr, "\nScan cancelled (partial results kept)")
	default:
		fmt.Printf("\nScan completed in %s\n\n", scanReport.Elapsed.Round(time.Millisecond))
	}

	// The diagnostic snapshot and scan history are best-effort: they
	// must not mask what the scan itself found.
	if path, err := diag.Save(cfg.DiagnosticLogPath); err != nil {
		logger.Error("failed to save diagnostic log", "error", err)
	} else {
		logger.Info("diagnostic log saved", "path", path)
	}

	if cfg.Verbose {
		fmt.Fprintln(os.Stderr, diag.Summary())
	}

	if err := outputScanReport(cfg, scanReport); err != nil {
		logger.Error("report output failed", "error", err)
	}

	if err := saveScanSession(ctx, db, scanReport, logger); err != nil {
		logger.Error("failed to save scan session", "error", err)
	}

	// A transport abort is the only scanner error worth failing the
	// command over; cancellation already printed its notice.
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		return scanErr
	}
	return nil
}

// printProgress writes periodic progress to stderr.
func printProgress(p scanner.Progress) {
	fmt.Fprintf(os.Stderr, "  %d/%d reads (%.1f%%), %d non-zero, %s elapsed\n",
		p.ReadsCompleted, p.TotalReads, p.Percent, p.NonZero, p.Elapsed.Round(time.Second))
}

// outputScanReport outputs the scan report in the requested format.
func outputScanReport(cfg *config.Config, scanReport *model.ScanReport) error {
	output, closeFn, err := openReportOutput(cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeFn()

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	_, err = writer.WriteScan(scanReport)
	return err
}

// openReportOutput resolves the report destination: a file when path is
// set, stdout otherwise. The returned closeFn is always safe to call.
func openReportOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain extracted device data; owner-only permissions.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// saveScanSession saves the scan session to the database if enabled.
// If db is nil, this function is a no-op.
func saveScanSession(ctx context.Context, db *database.ScanDB, scanReport *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveScanReport(ctx, scanReport)
	if err != nil {
		return fmt.Errorf("failed to save scan session: %w", err)
	}

	logger.Info("scan session saved", "sessionID", id)
	fmt.Printf("Session saved as #%d (compare with: edlscan compare %d <other-id>)\n", id, id)
	return nil
}
