package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/vfs19/edlscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteScan outputs the scan report in Markdown format.
func (w *MarkdownWriter) WriteScan(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeScanHeader(md, report)
	w.writeScanSummary(md, report)
	w.writeDiscoveries(md, report)
	w.writeSkipRegions(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeScanHeader writes the report header with scan range information.
func (w *MarkdownWriter) writeScanHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Memory Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Address Range", fmt.Sprintf("`0x%08x` - `0x%08x`", report.StartAddr, report.EndAddr)},
			{"Step", strconv.FormatUint(uint64(report.Step), 10)},
			{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", report.Elapsed.String()},
			{"Status", w.getScanStatusText(report)},
		},
	})
	md.PlainText("")
}

// getScanStatusText returns the status text based on report state.
func (w *MarkdownWriter) getScanStatusText(report *model.ScanReport) string {
	if report.Aborted {
		return "❌ Aborted - " + report.AbortReason + " (partial results)"
	}
	if report.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	return "✅ Complete"
}

// writeScanSummary writes the read/error counters and an alert.
func (w *MarkdownWriter) writeScanSummary(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Reads attempted", strconv.Itoa(report.ReadsAttempted)},
			{"Device errors", strconv.Itoa(report.ErrorCount)},
			{"Non-zero words", strconv.Itoa(report.NonZeroCount())},
			{"Skipped regions", strconv.Itoa(len(report.SkipRegions))},
		},
	})
	md.PlainText("")

	if report.ReadsAttempted > 0 {
		w.writeReadChart(md, report)
	}

	switch {
	case report.NonZeroCount() > 0:
		md.Importantf(
			"%d non-zero word(s) extracted. Fuse regions are usually zero; review the discoveries below.",
			report.NonZeroCount(),
		)
	case report.ErrorCount > 0:
		md.Warningf(
			"No non-zero memory found, but %d read(s) failed. The device may be gating this range.",
			report.ErrorCount,
		)
	default:
		md.Note("All reads returned zero data. The scanned range appears unprogrammed or masked.")
	}
	md.PlainText("")
}

// writeReadChart writes a mermaid pie chart of read outcomes.
func (w *MarkdownWriter) writeReadChart(md *markdown.Markdown, report *model.ScanReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Read Outcomes"),
		piechart.WithShowData(true),
	)

	zeroReads := report.ReadsAttempted - report.ErrorCount - report.NonZeroCount()
	if zeroReads > 0 {
		chart.LabelAndIntValue("Zero", uint64(zeroReads))
	}
	if report.NonZeroCount() > 0 {
		chart.LabelAndIntValue("Non-zero", uint64(report.NonZeroCount()))
	}
	if report.ErrorCount > 0 {
		chart.LabelAndIntValue("Errors", uint64(report.ErrorCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeDiscoveries writes the non-zero words table.
func (w *MarkdownWriter) writeDiscoveries(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Non-Zero Memory")
	md.PlainText("")

	if len(report.Discoveries) == 0 {
		md.PlainText("No non-zero words found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Discoveries))
	for i, d := range report.Discoveries {
		rows[i] = []string{"`" + d.AddressHex() + "`", "`" + d.ValueHex() + "`"}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Address", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSkipRegions writes the abandoned-region table.
func (w *MarkdownWriter) writeSkipRegions(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.SkipRegions) == 0 {
		return
	}

	md.H2("Skipped Regions")
	md.PlainText("")

	rows := make([][]string, len(report.SkipRegions))
	for i, s := range report.SkipRegions {
		rows[i] = []string{
			fmt.Sprintf("`0x%08x`", s.Start),
			fmt.Sprintf("`0x%08x`", s.End),
			s.Reason,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Start", "End", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteAnalysis outputs the analysis report in Markdown format.
func (w *MarkdownWriter) WriteAnalysis(report *model.AnalysisReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeAnalysisHeader(md, report)
	w.writeBootHeader(md, report)
	w.writeCertificates(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeAnalysisHeader writes the analysis report header.
func (w *MarkdownWriter) writeAnalysisHeader(md *markdown.Markdown, report *model.AnalysisReport) {
	md.H1("Boot Image Analysis")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Image", "`" + report.ImagePath + "`"},
			{"Size", strconv.FormatInt(report.ImageSize, 10) + " bytes"},
			{"SHA-256", "`" + report.SHA256 + "`"},
			{"Analyzed", report.DateAnalyzed.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")
}

// writeBootHeader writes the parsed boot header section.
func (w *MarkdownWriter) writeBootHeader(md *markdown.Markdown, report *model.AnalysisReport) {
	md.H2("Boot Header")
	md.PlainText("")

	h := report.BootHeader
	if h == nil {
		md.PlainText("No Android boot header found.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Component", "Size", "Load Address"},
		Rows: [][]string{
			{"Kernel", strconv.FormatUint(uint64(h.KernelSize), 10), fmt.Sprintf("`0x%08x`", h.KernelAddr)},
			{"Ramdisk", strconv.FormatUint(uint64(h.RamdiskSize), 10), fmt.Sprintf("`0x%08x`", h.RamdiskAddr)},
			{"Second", strconv.FormatUint(uint64(h.SecondSize), 10), fmt.Sprintf("`0x%08x`", h.SecondAddr)},
			{"Tags", "-", fmt.Sprintf("`0x%08x`", h.TagsAddr)},
		},
	})
	md.PlainTextf("Page size: %d bytes", h.PageSize)
	md.PlainText("")
}

// writeCertificates writes the SLA certificate table.
func (w *MarkdownWriter) writeCertificates(md *markdown.Markdown, report *model.AnalysisReport) {
	md.H2("SLA Certificates")
	md.PlainText("")

	if len(report.Certificates) == 0 {
		md.PlainText("No SLA certificates found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Certificates))
	for i, cert := range report.Certificates {
		rows[i] = []string{
			fmt.Sprintf("`0x%x`", cert.Offset),
			strconv.FormatUint(uint64(cert.Version), 10),
			strconv.FormatUint(uint64(cert.Serial), 10),
			strconv.Itoa(cert.Size),
			strconv.Itoa(cert.SignatureSize),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Offset", "Version", "Serial", "Size", "Signature Size"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFindings writes all findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.AnalysisReport) {
	md.H2("Findings")
	md.PlainText("")

	if len(report.Findings) == 0 {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	severities := []struct {
		level  model.Severity
		header string
	}{
		{model.SeverityCritical, "### 🔴 Critical"},
		{model.SeverityHigh, "### 🟠 High"},
		{model.SeverityMedium, "### 🟡 Medium"},
		{model.SeverityLow, "### 🔵 Low"},
		{model.SeverityInfo, "### ⚪ Info"},
	}

	for _, sev := range severities {
		findings := findingsBySeverity(report.Findings, sev.level)
		if len(findings) == 0 {
			continue
		}

		md.PlainText(sev.header)
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		value := f.Value
		if value == "" {
			value = "-"
		}
		location := f.Location
		if location == "" {
			location = "-"
		}

		rows[i] = []string{
			f.Title,
			truncateString(value, 50),
			truncateString(location, 40),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Value", "Location"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		if f.Description != "" {
			md.Details(f.Title, f.Description)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [edlscan](https://github.com/vfs19/edlscan)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
