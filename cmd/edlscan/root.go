// Package main provides the entry point for the edlscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for edlscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edlscan",
		Short: "Memory scanner for Qualcomm devices in EDL mode",
		Long: `edlscan scans protected memory regions of Qualcomm devices in Emergency
Download (EDL) mode, extracting SLA certificates and QFPROM fuse data.

The scanner reads memory one word at a time through an external EDL tool,
classifies the device's error responses, and survives honeypot regions,
protected pages, and link timeouts without losing results collected so far.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewDiagnoseCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
