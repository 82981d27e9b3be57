package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vfs19/edlscan/internal/analyze"
	"github.com/vfs19/edlscan/internal/config"
	applog "github.com/vfs19/edlscan/internal/log"
	"github.com/vfs19/edlscan/internal/model"
	"github.com/vfs19/edlscan/internal/pipeline"
	"github.com/vfs19/edlscan/internal/report"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <boot-image> [boot-image...]",
		Short: "Analyze boot images for SLA certificates",
		Long: `Analyze parses Android boot images offline, without any device.

For each image it parses the boot header, extracts the kernel and
ramdisk, locates embedded SLA certificates, and reports findings.
Extracted artifacts land in the output directory.

Examples:
  # Analyze one image
  edlscan analyze boot.img

  # Analyze several images concurrently
  edlscan analyze boot_a.img boot_b.img recovery.img

  # Custom artifact directory and markdown report
  edlscan analyze --output-dir artifacts --markdown boot.img`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyzeCmd,
	}

	cmd.Flags().String("output-dir", config.DefaultOutputDir,
		"Directory receiving extracted kernels, ramdisks, and certificates")
	cmd.Flags().IntP("concurrency", "b", 4,
		"Number of images analyzed concurrently")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runAnalyzeCmd executes the analyze command.
func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	outputDir, err := cmd.Flags().GetString("output-dir")
	if err != nil {
		return err
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	reportFile, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	logger := applog.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ba := pipeline.NewBatchAnalyzer(
		func() *analyze.Analyzer { return analyze.NewAnalyzer(outputDir, logger) },
		pipeline.WithConcurrency(concurrency),
		pipeline.WithBatchLogger(logger),
	)

	reports, err := ba.AnalyzeBatch(context.Background(), args)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	output, closeFn, err := openReportOutput(reportFile)
	if err != nil {
		return err
	}
	defer closeFn()

	var writer report.Writer
	switch {
	case jsonOutput:
		writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case markdownOutput:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	var certTotal int
	for _, r := range reports {
		if r == nil {
			continue
		}
		if _, err := writer.WriteAnalysis(r); err != nil {
			return fmt.Errorf("report output failed for %s: %w", r.ImagePath, err)
		}
		certTotal += len(r.Certificates)
	}

	printAnalysisSummary(cmd, reports, certTotal, outputDir)
	return nil
}

// printAnalysisSummary writes a one-line wrap-up to stdout.
func printAnalysisSummary(cmd *cobra.Command, reports []*model.AnalysisReport, certTotal int, outputDir string) {
	analyzed := 0
	for _, r := range reports {
		if r != nil {
			analyzed++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nAnalyzed %d image(s): %d SLA certificate(s) found, artifacts in %s\n",
		analyzed, certTotal, outputDir)
}
