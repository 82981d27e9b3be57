package model

import "testing"

func TestDiscoveryString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    Discovery
		want string
	}{
		{
			name: "full word",
			d:    Discovery{Address: 0x00700010, Value: []byte{0xde, 0xad, 0xbe, 0xef}},
			want: "0x00700010: de ad be ef",
		},
		{
			name: "low address zero padded",
			d:    Discovery{Address: 0x10, Value: []byte{0x01}},
			want: "0x00000010: 01",
		},
		{
			name: "empty value",
			d:    Discovery{Address: 0x00700000},
			want: "0x00700000: ",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.d.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScanReport(t *testing.T) {
	t.Parallel()

	r := NewScanReport(0x00700000, 0x00800000, 4)

	word := []byte{0xca, 0xfe, 0xba, 0xbe}
	r.AddDiscovery(0x00700020, word)

	if r.NonZeroCount() != 1 {
		t.Errorf("non-zero count = %d, want 1", r.NonZeroCount())
	}
	if got := r.Value(0x00700020); string(got) != string(word) {
		t.Errorf("value = % x, want ca fe ba be", got)
	}
	if r.Value(0x00700024) != nil {
		t.Error("unread address should yield nil")
	}

	// The stored value is a copy; mutating the source must not reach it.
	word[0] = 0x00
	if got := r.Value(0x00700020); got[0] != 0xca {
		t.Error("discovery should hold its own copy of the value")
	}
}

func TestSkipRegion(t *testing.T) {
	t.Parallel()

	region := SkipRegion{Start: 0x00701000, End: 0x00702000, Reason: "0x04_errors"}

	tests := []struct {
		name string
		addr uint32
		want bool
	}{
		{name: "start inclusive", addr: 0x00701000, want: true},
		{name: "interior", addr: 0x00701800, want: true},
		{name: "end exclusive", addr: 0x00702000, want: false},
		{name: "before", addr: 0x00700ffc, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := region.Contains(tt.addr); got != tt.want {
				t.Errorf("Contains(0x%08x) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}

	want := "0x00701000 - 0x00702000 (0x04_errors)"
	if got := region.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSeverity(t *testing.T) {
	t.Parallel()

	if SeverityCritical <= SeverityInfo {
		t.Error("severities should order from info up to critical")
	}
	if got := SeverityHigh.String(); got != "HIGH" {
		t.Errorf("SeverityHigh.String() = %q, want HIGH", got)
	}
	if got := Severity(99).String(); got != "UNKNOWN" {
		t.Errorf("out-of-range severity = %q, want UNKNOWN", got)
	}
}

func TestGetSeverity(t *testing.T) {
	t.Parallel()

	if got := GetSeverity("sla_certificate"); got != SeverityHigh {
		t.Errorf("sla_certificate = %s, want HIGH", got)
	}
	if got := GetSeverity("boot_header"); got != SeverityInfo {
		t.Errorf("boot_header = %s, want INFO", got)
	}
	if got := GetSeverity("never-seen-type"); got != SeverityInfo {
		t.Errorf("unknown type = %s, want INFO", got)
	}
}

func TestAnalysisReport_AddFinding(t *testing.T) {
	t.Parallel()

	r := NewAnalysisReport("boot.img", 1024)
	r.AddFinding(Finding{Type: "sla_certificate", Title: "found"})
	r.AddFinding(Finding{Type: "boot_header", Title: "parsed", Severity: SeverityMedium})

	if r.Findings[0].Severity != SeverityHigh {
		t.Errorf("severity should be assigned from type, got %s", r.Findings[0].Severity)
	}
	if r.Findings[1].Severity != SeverityMedium {
		t.Errorf("explicit severity should be kept, got %s", r.Findings[1].Severity)
	}
}

func TestDiagnosticReport(t *testing.T) {
	t.Parallel()

	r := NewDiagnosticReport("edl")
	r.AddProbe(ProbeResult{Name: "single read", OK: true})
	r.AddProbe(ProbeResult{Name: "latency", OK: false, Detail: "all reads failed"})

	if r.Passed() {
		t.Error("report with a failed probe should not pass")
	}
	if got := r.FailedCount(); got != 1 {
		t.Errorf("failed count = %d, want 1", got)
	}

	ok := NewDiagnosticReport("script")
	ok.AddProbe(ProbeResult{Name: "recovery rehearsal", OK: true})
	if !ok.Passed() {
		t.Error("report with only passing probes should pass")
	}
}
