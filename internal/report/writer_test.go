package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vfs19/edlscan/internal/model"
)

// testScanReport builds a scan report with one discovery and one skip region.
func testScanReport(t *testing.T) *model.ScanReport {
	t.Helper()

	report := model.NewScanReport(0x00700000, 0x00800000, 4)
	report.DateScanned = time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	report.Elapsed = 15 * time.Second
	report.ReadsAttempted = 512
	report.ErrorCount = 6
	report.AddDiscovery(0x00700010, []byte{0xde, 0xad, 0xbe, 0xef})
	report.SkipRegions = append(report.SkipRegions, model.SkipRegion{
		Start:  0x00701000,
		End:    0x00702000,
		Reason: "0x04_errors",
	})
	return report
}

// testAnalysisReport builds an analysis report with a header and a finding.
func testAnalysisReport(t *testing.T) *model.AnalysisReport {
	t.Helper()

	report := model.NewAnalysisReport("boot.img", 4096)
	report.SHA256 = "abc123"
	report.DateAnalyzed = time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	report.BootHeader = &model.BootHeader{
		Magic:      "ANDROID!",
		KernelSize: 1024,
		KernelAddr: 0x80000,
		PageSize:   2048,
	}
	report.Certificates = append(report.Certificates, model.SLACertificate{
		Offset:  0x800,
		Version: 1,
		Serial:  42,
		Size:    256,
	})
	report.AddFinding(model.Finding{
		Type:     "sla_certificate",
		Title:    "SLA certificate found",
		Value:    "serial 42",
		Location: "0x800",
		Severity: model.GetSeverity("sla_certificate"),
	})
	return report
}

// TestSimpleWriter tests the human-readable writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("scan report contains discoveries and skip regions", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		n, err := w.WriteScan(testScanReport(t))
		if err != nil {
			t.Fatalf("failed to write report: %v", err)
		}
		if n == 0 {
			t.Error("expected non-zero bytes written")
		}

		output := buf.String()
		for _, want := range []string{
			"MEMORY SCAN REPORT",
			"0x00700010: de ad be ef",
			"0x00701000 - 0x00702000 (0x04_errors)",
			"Reads attempted:  512",
			"Device errors:    6",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("cancelled scan shows partial-results status", func(t *testing.T) {
		t.Parallel()

		report := testScanReport(t)
		report.Cancelled = true

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteScan(report); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}
		if !strings.Contains(buf.String(), "CANCELLED (partial results)") {
			t.Error("output missing cancelled status")
		}
	})

	t.Run("analysis report contains certificates and findings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.WriteAnalysis(testAnalysisReport(t)); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"BOOT IMAGE ANALYSIS",
			"SLA CERTIFICATES",
			"SLA certificate found",
			"HIGH",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})
}

// TestJSONWriter tests the machine-readable writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("scan report is valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.WriteScan(testScanReport(t)); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}

		var decoded model.ScanReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.StartAddr != 0x00700000 {
			t.Errorf("start addr = 0x%08x, want 0x00700000", decoded.StartAddr)
		}
		if len(decoded.Discoveries) != 1 {
			t.Errorf("got %d discoveries, want 1", len(decoded.Discoveries))
		}
	})

	t.Run("full writer wraps with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewFullJSONWriter(&buf, "1.2.3")

		if _, err := w.WriteScan(testScanReport(t)); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}

		var wrapped VersionedReport
		if err := json.Unmarshal(buf.Bytes(), &wrapped); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if wrapped.Version != "1.2.3" {
			t.Errorf("version = %q, want %q", wrapped.Version, "1.2.3")
		}
		if wrapped.Scan == nil {
			t.Fatal("expected scan report in wrapper")
		}
	})
}

// TestMarkdownWriter tests markdown generation.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("scan report has tables and alert", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteScan(testScanReport(t)); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Memory Scan Report",
			"## Non-Zero Memory",
			"`0x00700010`",
			"## Skipped Regions",
			"0x04_errors",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("analysis report has certificate table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteAnalysis(testAnalysisReport(t)); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Boot Image Analysis",
			"## SLA Certificates",
			"`0x800`",
			"## Findings",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})
}

// TestMultiWriter tests fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var simple, jsonBuf bytes.Buffer
	mw := NewMultiWriter(
		NewSimpleWriter(&simple),
		NewJSONWriter(&jsonBuf),
	)

	n, err := mw.WriteScan(testScanReport(t))
	if err != nil {
		t.Fatalf("failed to write report: %v", err)
	}
	if n != simple.Len()+jsonBuf.Len() {
		t.Errorf("total bytes = %d, want %d", n, simple.Len()+jsonBuf.Len())
	}
	if simple.Len() == 0 || jsonBuf.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}

// TestTruncateString tests the table-cell truncation helper.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short string unchanged", input: "abc", maxLen: 10, want: "abc"},
		{name: "long string gets ellipsis", input: "abcdefghij", maxLen: 6, want: "abc..."},
		{name: "tiny max has no room for ellipsis", input: "abcdef", maxLen: 2, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
