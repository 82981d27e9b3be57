package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/vfs19/edlscan/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteScan outputs the scan report in human-readable format.
func (w *SimpleWriter) WriteScan(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeScanHeader(&sb, report)
	w.writeScanSummary(&sb, report)
	w.writeDiscoveries(&sb, report)
	w.writeSkipRegions(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeScanHeader writes the report header with scan range information.
func (w *SimpleWriter) writeScanHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        MEMORY SCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Address Range:  0x%08x - 0x%08x (step %d)\n",
		report.StartAddr, report.EndAddr, report.Step))
	sb.WriteString(fmt.Sprintf("Scan Date:      %s\n", report.DateScanned.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Elapsed:        %s\n", report.Elapsed.Round(1e6)))

	switch {
	case report.Aborted:
		sb.WriteString(fmt.Sprintf("Status:         ABORTED - %s (partial results)\n", report.AbortReason))
	case report.Cancelled:
		sb.WriteString("Status:         CANCELLED (partial results)\n")
	default:
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writeScanSummary writes the read/error counters.
func (w *SimpleWriter) writeScanSummary(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Reads attempted:  %d\n", report.ReadsAttempted))
	sb.WriteString(fmt.Sprintf("  Device errors:    %d\n", report.ErrorCount))
	sb.WriteString(fmt.Sprintf("  Non-zero words:   %d\n", report.NonZeroCount()))
	sb.WriteString(fmt.Sprintf("  Skipped regions:  %d\n", len(report.SkipRegions)))
	sb.WriteString("\n")
}

// writeDiscoveries writes the non-zero words found during the scan.
func (w *SimpleWriter) writeDiscoveries(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Discoveries) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("NON-ZERO MEMORY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Discoveries) == 0 {
		sb.WriteString("  No non-zero words found\n")
	} else {
		for _, d := range report.Discoveries {
			sb.WriteString("  " + d.String() + "\n")
		}
	}
	sb.WriteString("\n")
}

// writeSkipRegions writes the regions the recovery policy abandoned.
func (w *SimpleWriter) writeSkipRegions(sb *strings.Builder, report *model.ScanReport) {
	if len(report.SkipRegions) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SKIPPED REGIONS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.SkipRegions) == 0 {
		sb.WriteString("  No regions skipped\n")
	} else {
		for _, region := range report.SkipRegions {
			sb.WriteString("  " + region.String() + "\n")
		}
	}
	sb.WriteString("\n")
}

// WriteAnalysis outputs the analysis report in human-readable format.
func (w *SimpleWriter) WriteAnalysis(report *model.AnalysisReport) (int, error) {
	var sb strings.Builder

	w.writeAnalysisHeader(&sb, report)
	w.writeBootHeader(&sb, report)
	w.writeCertificates(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeAnalysisHeader writes the analysis report header.
func (w *SimpleWriter) writeAnalysisHeader(sb *strings.Builder, report *model.AnalysisReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      BOOT IMAGE ANALYSIS\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Image:          %s\n", report.ImagePath))
	sb.WriteString(fmt.Sprintf("Size:           %d bytes\n", report.ImageSize))
	sb.WriteString(fmt.Sprintf("SHA-256:        %s\n", report.SHA256))
	sb.WriteString(fmt.Sprintf("Analyzed:       %s\n", report.DateAnalyzed.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString("\n")
}

// writeBootHeader writes the parsed boot header section.
func (w *SimpleWriter) writeBootHeader(sb *strings.Builder, report *model.AnalysisReport) {
	if report.BootHeader == nil && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("BOOT HEADER\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	h := report.BootHeader
	if h == nil {
		sb.WriteString("  No Android boot header found\n\n")
		return
	}

	sb.WriteString(fmt.Sprintf("  Kernel:   %d bytes @ 0x%08x\n", h.KernelSize, h.KernelAddr))
	sb.WriteString(fmt.Sprintf("  Ramdisk:  %d bytes @ 0x%08x\n", h.RamdiskSize, h.RamdiskAddr))
	if h.SecondSize > 0 {
		sb.WriteString(fmt.Sprintf("  Second:   %d bytes @ 0x%08x\n", h.SecondSize, h.SecondAddr))
	}
	sb.WriteString(fmt.Sprintf("  Tags:     0x%08x\n", h.TagsAddr))
	sb.WriteString(fmt.Sprintf("  Page:     %d bytes\n", h.PageSize))
	sb.WriteString("\n")
}

// writeCertificates writes the SLA certificate section.
func (w *SimpleWriter) writeCertificates(sb *strings.Builder, report *model.AnalysisReport) {
	if len(report.Certificates) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SLA CERTIFICATES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Certificates) == 0 {
		sb.WriteString("  No SLA certificates found\n")
	} else {
		for i, cert := range report.Certificates {
			sb.WriteString(fmt.Sprintf("  [%d] offset 0x%x, version %d, serial %d, %d bytes (signature %d bytes)\n",
				i, cert.Offset, cert.Version, cert.Serial, cert.Size, cert.SignatureSize))
		}
	}
	sb.WriteString("\n")
}

// writeFindings writes all findings grouped by severity.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.AnalysisReport) {
	if len(report.Findings) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FINDINGS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	severities := []model.Severity{
		model.SeverityCritical,
		model.SeverityHigh,
		model.SeverityMedium,
		model.SeverityLow,
		model.SeverityInfo,
	}

	for _, severity := range severities {
		findings := findingsBySeverity(report.Findings, severity)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}
		w.writeFindingsForSeverity(sb, severity, findings)
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *SimpleWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.Finding) {
	indicator := w.getSeverityIndicator(severity)
	sb.WriteString(fmt.Sprintf("[%s] %s\n", indicator, severity.String()))

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, finding := range findings {
		sb.WriteString(fmt.Sprintf("  * %s\n", finding.Title))
		if finding.Value != "" {
			sb.WriteString(fmt.Sprintf("    Value: %s\n", finding.Value))
		}
		if finding.Location != "" {
			sb.WriteString(fmt.Sprintf("    Location: %s\n", finding.Location))
		}
		if w.verbose && finding.Description != "" {
			sb.WriteString(fmt.Sprintf("    Description: %s\n", finding.Description))
		}
	}
	sb.WriteString("\n")
}

// getSeverityIndicator returns a visual indicator for the severity level.
func (w *SimpleWriter) getSeverityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by edlscan\n")
	sb.WriteString("https://github.com/vfs19/edlscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// findingsBySeverity filters findings matching the given severity.
func findingsBySeverity(findings []model.Finding, severity model.Severity) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}
