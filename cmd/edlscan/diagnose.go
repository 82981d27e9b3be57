package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vfs19/edlscan/internal/config"
	"github.com/vfs19/edlscan/internal/diaglog"
	applog "github.com/vfs19/edlscan/internal/log"
	"github.com/vfs19/edlscan/internal/model"
	"github.com/vfs19/edlscan/internal/pipeline"
	"github.com/vfs19/edlscan/internal/transport"
)

// NewDiagnoseCmd creates the diagnose command.
func NewDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Probe the device link and rehearse error recovery",
		Long: `Diagnose runs a sequence of probes before committing to a long scan:

- recovery-rehearsal: verifies the error recovery policy offline
- single-read: one word read at a known address
- read-latency: samples read latency to estimate scan duration

With --offline, only the device-free probes run. This is useful for
verifying a build without hardware attached.

Examples:
  # Full diagnostics against the default EDL tool
  edlscan diagnose

  # Offline checks only
  edlscan diagnose --offline

  # Probe a custom address with more latency samples
  edlscan diagnose --probe-addr 0x00700000 --samples 10`,
		Args: cobra.NoArgs,
		RunE: runDiagnoseCmd,
	}

	cmd.Flags().Bool("offline", false,
		"Run only probes that need no device")
	cmd.Flags().String("probe-addr", fmt.Sprintf("0x%08x", config.DefaultStartAddr),
		"Address used by the read probes (hex)")
	cmd.Flags().Int("samples", 5,
		"Number of reads for the latency probe")
	cmd.Flags().String("edl-binary", config.DefaultEDLBinary,
		"Path of the external EDL tool")
	cmd.Flags().String("loader", config.DefaultLoader,
		"Firehose programmer passed to the EDL tool")
	cmd.Flags().BoolP("json", "j", false,
		"Output the diagnostic report as JSON")

	return cmd
}

// runDiagnoseCmd executes the diagnose command.
func runDiagnoseCmd(cmd *cobra.Command, _ []string) error {
	offline, err := cmd.Flags().GetBool("offline")
	if err != nil {
		return err
	}
	probeAddrStr, err := cmd.Flags().GetString("probe-addr")
	if err != nil {
		return err
	}
	probeAddr, err := config.ParseHexAddr(probeAddrStr)
	if err != nil {
		return fmt.Errorf("invalid --probe-addr: %w", err)
	}
	samples, err := cmd.Flags().GetInt("samples")
	if err != nil {
		return err
	}
	edlBinary, err := cmd.Flags().GetString("edl-binary")
	if err != nil {
		return err
	}
	loader, err := cmd.Flags().GetString("loader")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	logger := applog.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return runDiagnose(ctx, cmd, diagnoseOptions{
		offline:   offline,
		probeAddr: probeAddr,
		samples:   samples,
		edlBinary: edlBinary,
		loader:    loader,
		json:      jsonOutput,
	}, logger)
}

// diagnoseOptions carries the parsed diagnose flags.
type diagnoseOptions struct {
	offline   bool
	probeAddr uint32
	samples   int
	edlBinary string
	loader    string
	json      bool
}

// runDiagnose builds and executes the probe pipeline.
func runDiagnose(ctx context.Context, cmd *cobra.Command, opts diagnoseOptions, logger *slog.Logger) error {
	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)

	// The offline rehearsal always runs: a broken recovery policy
	// makes every scan unsafe regardless of how the link looks.
	p.AddStep(&pipeline.RecoveryProbe{})

	transportName := "offline"
	if !opts.offline {
		reader, err := transport.New(opts.edlBinary, opts.loader, config.DefaultReadTimeout, logger)
		if err != nil {
			return err
		}
		transportName = reader.Name()

		diag := diaglog.New(diaglog.WithLogger(logger))
		p.AddStep(&pipeline.ReadProbe{Reader: reader, Address: opts.probeAddr, Diag: diag})
		p.AddStep(&pipeline.LatencyProbe{
			Reader:  reader,
			Address: opts.probeAddr,
			Samples: opts.samples,
			Delay:   config.MinReadDelay,
		})
	}

	diagReport := model.NewDiagnosticReport(transportName)
	if err := p.Execute(ctx, diagReport); err != nil {
		return err
	}

	if opts.json {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(diagReport)
	}

	printDiagnosticReport(cmd, diagReport)
	if !diagReport.Passed() {
		return fmt.Errorf("%d probe(s) failed", diagReport.FailedCount())
	}
	return nil
}

// printDiagnosticReport writes the probe outcomes as text.
func printDiagnosticReport(cmd *cobra.Command, r *model.DiagnosticReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Diagnostics (%s transport)\n\n", r.Transport)

	for _, probe := range r.Probes {
		mark := "PASS"
		if !probe.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "  [%s] %-20s %s\n", mark, probe.Name, probe.Detail)
	}

	fmt.Fprintln(out)
	if r.Passed() {
		fmt.Fprintln(out, "All probes passed.")
	} else {
		fmt.Fprintf(out, "%d of %d probes failed.\n", r.FailedCount(), len(r.Probes))
	}
}
