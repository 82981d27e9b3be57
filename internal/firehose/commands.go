package firehose

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
)

// SectorSize is the UFS sector size the target reports. Read commands
// address storage in units of this size.
const SectorSize = 4096

// MaxSectorsPerRead caps one read request at 2 MB.
const MaxSectorsPerRead = 512

// xmlHeader starts every Firehose command.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// BuildPeek builds a peek command for size bytes at a physical address.
// Peek is the only request the protected memory interface answers once
// SLA is active, which is why the scanner core is built on it.
func BuildPeek(address, size uint32) string {
	return fmt.Sprintf(
		"%s<data>\n  <peek address=\"0x%08x\" size_in_bytes=\"%d\" />\n</data>\n",
		xmlHeader, address, size,
	)
}

// BuildRead builds a standard read command. When physical is true the
// address is a physical memory address, otherwise a start sector.
func BuildRead(address, size uint32, physical bool) string {
	attr := "start_sector"
	if physical {
		attr = "physical_address"
	}
	return fmt.Sprintf(
		"%s<data>\n  <read %s=\"0x%x\" num_partition_sectors=\"%d\" />\n</data>\n",
		xmlHeader, attr, address, size/SectorSize,
	)
}

// BuildNop builds the no-operation heartbeat command.
func BuildNop() string {
	return xmlHeader + "<data>\n  <nop />\n</data>\n"
}

// BuildConfigure builds a configure command from attribute pairs.
// Attributes are emitted in sorted key order so command bytes are
// reproducible across runs, which keeps diagnostic diffs meaningful.
func BuildConfigure(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString("<data>\n  <configure")
	for _, k := range keys {
		buf.WriteString(" ")
		buf.WriteString(k)
		buf.WriteString(`="`)
		_ = xml.EscapeText(&buf, []byte(attrs[k])) //nolint:errcheck // bytes.Buffer writes cannot fail
		buf.WriteString(`"`)
	}
	buf.WriteString(" />\n</data>\n")
	return buf.String()
}
