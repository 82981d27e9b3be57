package model

import "time"

// AnalysisReport is the result of offline boot-image analysis.
// It aggregates the parsed boot header, every SLA certificate located in
// the image, and descriptive findings for the report writers.
type AnalysisReport struct {
	// ImagePath is the path of the analyzed boot image.
	ImagePath string `json:"image_path"`

	// ImageSize is the image size in bytes.
	ImageSize int64 `json:"image_size"`

	// SHA256 is the hex-encoded checksum of the full image.
	SHA256 string `json:"sha256"`

	// DateAnalyzed is when the analysis ran.
	DateAnalyzed time.Time `json:"date_analyzed"`

	// BootHeader is the parsed Android boot header, nil if the image
	// does not carry the ANDROID! magic.
	BootHeader *BootHeader `json:"boot_header,omitempty"`

	// Certificates holds every SLA certificate parsed out of the image.
	Certificates []SLACertificate `json:"certificates,omitempty"`

	// Findings lists analyzer observations, most severe first.
	Findings []Finding `json:"findings,omitempty"`
}

// NewAnalysisReport creates an empty analysis report for the given image.
func NewAnalysisReport(path string, size int64) *AnalysisReport {
	return &AnalysisReport{
		ImagePath:    path,
		ImageSize:    size,
		DateAnalyzed: time.Now(),
	}
}

// AddFinding appends a finding, assigning severity from its type.
func (r *AnalysisReport) AddFinding(f Finding) {
	if f.Severity == SeverityInfo && f.Type != "" {
		f.Severity = GetSeverity(f.Type)
	}
	r.Findings = append(r.Findings, f)
}

// BootHeader is the fixed-offset Android boot image header.
// All multi-byte fields are little-endian in the image.
type BootHeader struct {
	// Magic is the 8-byte header magic, "ANDROID!" for valid images.
	Magic string `json:"magic"`

	// KernelSize is the kernel length in bytes.
	KernelSize uint32 `json:"kernel_size"`

	// KernelAddr is the kernel load address.
	KernelAddr uint32 `json:"kernel_addr"`

	// RamdiskSize is the ramdisk length in bytes.
	RamdiskSize uint32 `json:"ramdisk_size"`

	// RamdiskAddr is the ramdisk load address.
	RamdiskAddr uint32 `json:"ramdisk_addr"`

	// SecondSize is the second-stage loader length in bytes.
	SecondSize uint32 `json:"second_size"`

	// SecondAddr is the second-stage load address.
	SecondAddr uint32 `json:"second_addr"`

	// TagsAddr is the kernel tags address.
	TagsAddr uint32 `json:"tags_addr"`

	// PageSize is the flash page size; kernel and ramdisk offsets
	// within the image are aligned to it.
	PageSize uint32 `json:"page_size"`
}

// SLACertificate is a parsed Secure Level Authentication certificate.
// Only the structural fields are extracted; signature verification is
// out of scope.
type SLACertificate struct {
	// Offset is where in the source image the certificate was found.
	Offset int64 `json:"offset"`

	// Magic is the 4-byte certificate magic, hex-encoded.
	Magic string `json:"magic"`

	// Version is the certificate format version.
	Version uint32 `json:"version"`

	// Serial is the certificate serial number.
	Serial uint32 `json:"serial"`

	// Size is the total certificate length in bytes.
	Size int `json:"size"`

	// SignatureSize is the length of the trailing signature blob.
	SignatureSize int `json:"signature_size"`
}
