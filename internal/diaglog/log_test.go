package diaglog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCounts(t *testing.T) {
	t.Parallel()

	l := New(WithLogger(quietLogger()))

	l.LogResponse("script", "peek_response", "OK", []byte{0xde, 0xad})
	l.LogResponse("script", "peek_response", "honeypot", []byte{0, 0, 0, 0})
	l.LogChallenge([]byte{0x01, 0x02, 0x03})
	l.LogLoaderResponse("prog_emmc.mbn", "<response value=\"ACK\"/>", true)
	l.LogError("usb_timeout", "device error 0xff at 0x00700000", nil)
	l.LogError("usb_timeout", "device error 0xff at 0x00700004", nil)

	responses, challenges, loaders, errors := l.Counts()
	if responses != 2 {
		t.Errorf("responses = %d, want 2", responses)
	}
	if challenges != 1 {
		t.Errorf("challenges = %d, want 1", challenges)
	}
	if loaders != 1 {
		t.Errorf("loader responses = %d, want 1", loaders)
	}
	if errors != 2 {
		t.Errorf("errors = %d, want 2", errors)
	}
}

func TestErrorHistogram(t *testing.T) {
	t.Parallel()

	l := New(WithLogger(quietLogger()))
	l.LogError("usb_timeout", "timeout", nil)
	l.LogError("usb_timeout", "timeout", nil)
	l.LogError("usb_error_0x04", "non-standard", nil)

	hist := l.ErrorHistogram()
	if hist["usb_timeout"] != 2 {
		t.Errorf("usb_timeout = %d, want 2", hist["usb_timeout"])
	}
	if hist["usb_error_0x04"] != 1 {
		t.Errorf("usb_error_0x04 = %d, want 1", hist["usb_error_0x04"])
	}
}

func TestSave(t *testing.T) {
	t.Parallel()

	l := New(WithLogger(quietLogger()))
	l.LogResponse("edl", "peek_response", "OK", []byte{0xaa, 0xbb})
	l.LogError("usb_timeout", "timeout at 0x00700000",
		map[string]string{"address": "0x00700000"})

	path := filepath.Join(t.TempDir(), "diag.json")
	got, err := l.Save(path)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if got != path {
		t.Errorf("returned path = %q, want %q", got, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}

	var snap struct {
		TotalResponses int `json:"total_responses"`
		ErrorsCount    int `json:"errors_count"`
		ErrorHistogram map[string]int `json:"error_histogram"`
		Responses      []ResponseEntry `json:"responses"`
		Errors         []ErrorEntry    `json:"errors"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}

	if snap.TotalResponses != 1 {
		t.Errorf("total_responses = %d, want 1", snap.TotalResponses)
	}
	if snap.ErrorsCount != 1 {
		t.Errorf("errors_count = %d, want 1", snap.ErrorsCount)
	}
	if snap.ErrorHistogram["usb_timeout"] != 1 {
		t.Errorf("histogram usb_timeout = %d, want 1", snap.ErrorHistogram["usb_timeout"])
	}
	if snap.Responses[0].DataHex != "aabb" {
		t.Errorf("response data_hex = %q, want aabb", snap.Responses[0].DataHex)
	}
	if snap.Errors[0].Context["address"] != "0x00700000" {
		t.Errorf("error context address = %q, want 0x00700000", snap.Errors[0].Context["address"])
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp snapshot file should not survive a successful save")
	}
}

// TestSave_Idempotent tests that saving twice with no new events writes
// identical counters.
func TestSave_Idempotent(t *testing.T) {
	t.Parallel()

	l := New(WithLogger(quietLogger()))
	l.LogResponse("script", "peek_response", "OK", []byte{0x01})
	l.LogError("usb_timeout", "timeout", nil)

	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	if _, err := l.Save(first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if _, err := l.Save(second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	counters := func(path string) (int, int) {
		t.Helper()
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read %s: %v", path, err)
		}
		var snap struct {
			TotalResponses int `json:"total_responses"`
			ErrorsCount    int `json:"errors_count"`
		}
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("invalid snapshot %s: %v", path, err)
		}
		return snap.TotalResponses, snap.ErrorsCount
	}

	r1, e1 := counters(first)
	r2, e2 := counters(second)
	if r1 != r2 || e1 != e2 {
		t.Errorf("counters differ between saves: (%d,%d) vs (%d,%d)", r1, e1, r2, e2)
	}
}

// TestSave_TailLimits tests that only the most recent entries survive in
// the snapshot arrays while the counters keep the full totals.
func TestSave_TailLimits(t *testing.T) {
	t.Parallel()

	l := New(WithLogger(quietLogger()))
	for i := 0; i < 150; i++ {
		l.LogResponse("script", "peek_response", "honeypot", []byte{0, 0, 0, 0})
	}
	for i := 0; i < 75; i++ {
		l.LogError("usb_timeout", "timeout", nil)
	}

	path := filepath.Join(t.TempDir(), "diag.json")
	if _, err := l.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	var snap struct {
		TotalResponses int             `json:"total_responses"`
		ErrorsCount    int             `json:"errors_count"`
		Responses      []ResponseEntry `json:"responses"`
		Errors         []ErrorEntry    `json:"errors"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("invalid snapshot: %v", err)
	}

	if snap.TotalResponses != 150 {
		t.Errorf("total_responses = %d, want 150", snap.TotalResponses)
	}
	if len(snap.Responses) != snapshotResponseLimit {
		t.Errorf("responses in snapshot = %d, want %d", len(snap.Responses), snapshotResponseLimit)
	}
	if snap.ErrorsCount != 75 {
		t.Errorf("errors_count = %d, want 75", snap.ErrorsCount)
	}
	if len(snap.Errors) != snapshotErrorLimit {
		t.Errorf("errors in snapshot = %d, want %d", len(snap.Errors), snapshotErrorLimit)
	}
}

// TestChallengeVault tests the append-only vault format: a timestamp
// comment, the hex bytes, and a blank separator per challenge.
func TestChallengeVault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vault", "sla_challenges.txt")
	l := New(WithVaultPath(path), WithLogger(quietLogger()))

	l.LogChallenge([]byte{0xde, 0xad, 0xbe, 0xef})
	l.LogChallenge([]byte{0x01, 0x02})

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read vault: %v", err)
	}

	blocks := strings.Split(strings.TrimRight(string(content), "\n"), "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("got %d vault blocks, want 2", len(blocks))
	}

	wantHex := []string{"deadbeef", "0102"}
	for i, block := range blocks {
		lines := strings.Split(block, "\n")
		if len(lines) != 2 {
			t.Fatalf("block %d has %d lines, want 2", i, len(lines))
		}
		if !strings.HasPrefix(lines[0], "# ") {
			t.Errorf("block %d: first line %q is not a timestamp comment", i, lines[0])
		}
		if lines[1] != wantHex[i] {
			t.Errorf("block %d: hex = %q, want %q", i, lines[1], wantHex[i])
		}
	}
}

// TestChallengeVault_WriteFailure tests that vault trouble never loses
// the in-memory challenge.
func TestChallengeVault_WriteFailure(t *testing.T) {
	t.Parallel()

	// A directory at the vault path makes every append fail.
	dir := t.TempDir()
	l := New(WithVaultPath(dir), WithLogger(quietLogger()))

	l.LogChallenge([]byte{0xca, 0xfe})

	_, challenges, _, _ := l.Counts()
	if challenges != 1 {
		t.Errorf("challenges = %d, want 1 despite vault failure", challenges)
	}
	if !strings.Contains(l.Summary(), "Storage errors during session: 1") {
		t.Error("summary should report the storage error")
	}
}

// TestLiveWriter tests the newline-delimited JSON stream.
func TestLiveWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(WithLiveWriter(&buf), WithLogger(quietLogger()))

	l.LogResponse("script", "peek_response", "OK", []byte{0x01})
	l.LogError("usb_timeout", "timeout", nil)
	l.LogChallenge([]byte{0x02})

	var kinds []string
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var line struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("live stream line is not valid JSON: %v", err)
		}
		kinds = append(kinds, line.Kind)
	}

	want := []string{"response", "error", "challenge"}
	if len(kinds) != len(want) {
		t.Fatalf("got %d live records, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("record %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	l := New(WithLogger(quietLogger()))
	l.LogResponse("edl", "peek_response", "OK", []byte{0x01})
	l.LogChallenge([]byte{0x02, 0x03})
	l.LogLoaderResponse("prog_emmc.mbn", "<response value=\"ACK\"/>", true)
	l.LogLoaderResponse("prog_ufs.mbn", "<response value=\"NAK\"/>", false)
	l.LogError("usb_error_0x04", "non-standard", nil)

	summary := l.Summary()
	for _, want := range []string{
		"Total Responses: 1",
		"SLA Challenges Received: 1",
		"Loader Responses: 2",
		"Errors: 1",
		"Loader Success Rate: 50.0%",
		"usb_error_0x04: 1",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestNewResponseEntry_Preview(t *testing.T) {
	t.Parallel()

	long := bytes.Repeat([]byte{'A'}, asciiPreviewLimit+50)
	entry := NewResponseEntry("script", "peek_response", "OK", long)

	if entry.DataSize != len(long) {
		t.Errorf("data_size = %d, want %d", entry.DataSize, len(long))
	}
	if !strings.HasSuffix(entry.DataASCII, "... (+50 bytes)") {
		t.Errorf("preview should note truncation, got %q", entry.DataASCII)
	}
	if len(entry.DataHex) != 2*len(long) {
		t.Errorf("data_hex length = %d, want %d (hex never truncates)", len(entry.DataHex), 2*len(long))
	}
}
