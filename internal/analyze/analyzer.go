package analyze

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vfs19/edlscan/internal/model"
)

// Analyzer runs the full boot-image analysis: header, kernel/ramdisk
// extraction, and SLA certificate discovery. Artifacts land in OutputDir.
type Analyzer struct {
	// OutputDir receives extracted kernels, ramdisks, and certificates.
	OutputDir string

	// Logger records per-step outcomes.
	Logger *slog.Logger
}

// NewAnalyzer creates an Analyzer writing artifacts to outputDir.
func NewAnalyzer(outputDir string, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{OutputDir: outputDir, Logger: logger}
}

// AnalyzeFile loads a boot image from disk and analyzes it.
func (a *Analyzer) AnalyzeFile(path string) (*model.AnalysisReport, error) {
	image, err := os.ReadFile(path) //nolint:gosec // User-provided image path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read boot image: %w", err)
	}
	return a.Analyze(path, image)
}

// Analyze inspects an in-memory boot image. Every certificate candidate
// and the kernel/ramdisk (when a valid header is present) are written to
// the output directory; the returned report describes what was found.
//
// A malformed header is a finding, not a failure: the SLA signature
// search still runs over the raw image, because certificates have been
// observed in images with damaged headers.
func (a *Analyzer) Analyze(path string, image []byte) (*model.AnalysisReport, error) {
	report := model.NewAnalysisReport(path, int64(len(image)))

	sum := sha256.Sum256(image)
	report.SHA256 = hex.EncodeToString(sum[:])

	a.analyzeHeader(report, image)
	a.findCertificates(report, image)

	return report, nil
}

// analyzeHeader parses the boot header and extracts kernel and ramdisk.
func (a *Analyzer) analyzeHeader(report *model.AnalysisReport, image []byte) {
	header, err := ParseBootHeader(image)
	if err != nil {
		typ := "unknown_image_magic"
		if errors.Is(err, ErrImageTooSmall) {
			typ = "truncated_image"
		}
		report.AddFinding(model.Finding{
			Type:        typ,
			Title:       "Boot header not parseable",
			Description: err.Error(),
		})
		a.Logger.Warn("boot header parse failed", "error", err)
		return
	}

	report.BootHeader = header
	report.AddFinding(model.Finding{
		Type:  "boot_header",
		Title: "Android boot header parsed",
		Description: fmt.Sprintf("page_size=%d kernel_size=%d ramdisk_size=%d",
			header.PageSize, header.KernelSize, header.RamdiskSize),
	})

	kernelPath := filepath.Join(a.OutputDir, "kernel")
	if n, err := ExtractKernel(image, header, kernelPath); err != nil {
		a.Logger.Warn("kernel extraction failed", "error", err)
	} else {
		report.AddFinding(model.Finding{
			Type:        "kernel_image",
			Title:       "Kernel extracted",
			Description: fmt.Sprintf("%d bytes to %s", n, kernelPath),
		})
	}

	ramdiskPath := filepath.Join(a.OutputDir, "ramdisk.gz")
	if n, err := ExtractRamdisk(image, header, ramdiskPath); err != nil {
		a.Logger.Warn("ramdisk extraction failed", "error", err)
	} else {
		report.AddFinding(model.Finding{
			Type:        "ramdisk_image",
			Title:       "Ramdisk extracted",
			Description: fmt.Sprintf("%d bytes to %s", n, ramdiskPath),
		})
	}
}

// findCertificates locates SLA magic occurrences, parses each candidate,
// and writes the raw blobs alongside the other artifacts.
func (a *Analyzer) findCertificates(report *model.AnalysisReport, image []byte) {
	offsets := FindSLAOffsets(image)
	a.Logger.Info("SLA signature search complete", "candidates", len(offsets))

	for idx, offset := range offsets {
		blob := CertificateBlob(image, offset)

		outPath := filepath.Join(a.OutputDir, fmt.Sprintf("sla_%d.bin", idx))
		if err := writeArtifact(outPath, blob); err != nil {
			a.Logger.Warn("failed to save certificate blob", "offset", offset, "error", err)
		}

		cert, err := ParseCertificate(blob, offset)
		if err != nil {
			report.AddFinding(model.Finding{
				Type:        "sla_parse_failure",
				Title:       "SLA magic without parseable certificate",
				Description: err.Error(),
				Location:    fmt.Sprintf("0x%08x", offset),
			})
			continue
		}

		report.Certificates = append(report.Certificates, *cert)
		report.AddFinding(model.Finding{
			Type:  "sla_certificate",
			Title: "SLA certificate found",
			Description: fmt.Sprintf("version %d, %d-byte signature",
				cert.Version, cert.SignatureSize),
			Value:    fmt.Sprintf("serial 0x%08x", cert.Serial),
			Location: fmt.Sprintf("0x%08x", offset),
		})
	}
}
