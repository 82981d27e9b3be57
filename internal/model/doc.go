// Package model defines the shared data structures for edlscan.
//
// This package contains the scan report, discovery, skip-region, finding,
// and analysis types that flow between the scanner core, the report
// writers, and the scan-history database. It has no dependencies on other
// edlscan packages so that any layer can import it without cycles.
package model
