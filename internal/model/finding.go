package model

// Severity indicates the security relevance of a finding.
// Higher values are more severe.
type Severity int

// Severity levels, ordered from least to most severe.
const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the uppercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Finding is one observation produced by the boot-image or certificate
// analyzers. Findings are descriptive: they report what was present in
// the image, not whether it is exploitable.
type Finding struct {
	// Type is the finding type identifier for categorization,
	// e.g. "sla_certificate", "boot_header", "kernel_image".
	Type string `json:"type"`

	// Title is a short description of the finding.
	Title string `json:"title"`

	// Description provides detail about what was found and where.
	Description string `json:"description,omitempty"`

	// Severity indicates how security-relevant the finding is.
	Severity Severity `json:"severity"`

	// Value contains the specific value found (e.g. a serial number).
	Value string `json:"value,omitempty"`

	// Location indicates where in the image the finding was discovered,
	// formatted as a hex offset.
	Location string `json:"location,omitempty"`
}

// severityByType maps known finding types to their severity.
// Unknown types default to SeverityInfo.
//
// Design decision: severity lives in a single table rather than at each
// call site so that every producer of a finding type agrees on its
// weight, and so report writers can rely on consistent ordering.
var severityByType = map[string]Severity{
	"sla_certificate":      SeverityHigh,
	"sla_signature_buried": SeverityMedium,
	"sla_parse_failure":    SeverityLow,
	"boot_header":          SeverityInfo,
	"kernel_image":         SeverityInfo,
	"ramdisk_image":        SeverityInfo,
	"truncated_image":      SeverityLow,
	"unknown_image_magic":  SeverityLow,
}

// GetSeverity returns the severity for a finding type.
func GetSeverity(findingType string) Severity {
	if s, ok := severityByType[findingType]; ok {
		return s
	}
	return SeverityInfo
}
