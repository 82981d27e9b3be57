package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vfs19/edlscan/internal/config"
)

// TestNewScanCmd tests the scan command creation.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "scan" {
			t.Errorf("expected use 'scan', got %q", cmd.Use)
		}
	})

	t.Run("has address range flags with hex defaults", func(t *testing.T) {
		t.Parallel()

		start := cmd.Flags().Lookup("start-addr")
		if start == nil {
			t.Fatal("expected start-addr flag")
		}
		if start.DefValue != "0x00700000" {
			t.Errorf("start-addr default = %q, want 0x00700000", start.DefValue)
		}

		end := cmd.Flags().Lookup("end-addr")
		if end == nil {
			t.Fatal("expected end-addr flag")
		}
		if end.DefValue != "0x00800000" {
			t.Errorf("end-addr default = %q, want 0x00800000", end.DefValue)
		}
	})

	t.Run("has pacing flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"delay", "timeout", "step"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("has log destination flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"results-log", "diagnostic-log", "vault"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// TestBuildConfig tests the flag-to-config translation.
func TestBuildConfig(t *testing.T) {
	t.Run("defaults produce a valid config", func(t *testing.T) {
		cmd := NewScanCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}

		if cfg.StartAddr != config.DefaultStartAddr {
			t.Errorf("start addr = 0x%08x, want 0x%08x", cfg.StartAddr, config.DefaultStartAddr)
		}
		if cfg.EndAddr != config.DefaultEndAddr {
			t.Errorf("end addr = 0x%08x, want 0x%08x", cfg.EndAddr, config.DefaultEndAddr)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to default to true")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("parses hex addresses from flags", func(t *testing.T) {
		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{
			"--start-addr", "0x00780000",
			"--end-addr", "0x00784000",
			"--delay", "50ms",
			"--no-db",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}

		if cfg.StartAddr != 0x00780000 {
			t.Errorf("start addr = 0x%08x, want 0x00780000", cfg.StartAddr)
		}
		if cfg.EndAddr != 0x00784000 {
			t.Errorf("end addr = 0x%08x, want 0x00784000", cfg.EndAddr)
		}
		if cfg.ReadDelay != 50*time.Millisecond {
			t.Errorf("read delay = %v, want 50ms", cfg.ReadDelay)
		}
		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false with --no-db")
		}
	})

	t.Run("rejects malformed hex address", func(t *testing.T) {
		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--start-addr", "not-hex"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for malformed hex address")
		}
	})

	t.Run("delay below hardware floor fails validation", func(t *testing.T) {
		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--delay", "1ms"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if err := cfg.Validate(); !errors.Is(err, config.ErrDelayTooShort) {
			t.Errorf("expected ErrDelayTooShort, got %v", err)
		}
	})

	t.Run("explicit missing config file is an error", func(t *testing.T) {
		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--config", "/nonexistent/.edlscan"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("profile from config file overrides defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ".edlscan")
		content := `profiles:
  test-device:
    start_addr: "0x00780000"
    end_addr: "0x00784000"
    read_delay: 25ms
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--config", configPath, "--profile", "test-device"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if cfg.StartAddr != 0x00780000 {
			t.Errorf("start addr = 0x%08x, want 0x00780000", cfg.StartAddr)
		}
		if cfg.ReadDelay != 25*time.Millisecond {
			t.Errorf("read delay = %v, want 25ms", cfg.ReadDelay)
		}
	})

	t.Run("explicit flags win over profile values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ".edlscan")
		content := `profiles:
  test-device:
    start_addr: "0x00700000"
    end_addr: "0x00784000"
    read_delay: 25ms
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{
			"--config", configPath,
			"--profile", "test-device",
			"--start-addr", "0x00000123",
			"--delay", "40ms",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if cfg.StartAddr != 0x00000123 {
			t.Errorf("start addr = 0x%08x, want 0x00000123 (flag should win over profile)", cfg.StartAddr)
		}
		if cfg.ReadDelay != 40*time.Millisecond {
			t.Errorf("read delay = %v, want 40ms (flag should win over profile)", cfg.ReadDelay)
		}
		// Fields left to the profile still take its values.
		if cfg.EndAddr != 0x00784000 {
			t.Errorf("end addr = 0x%08x, want profile value 0x00784000", cfg.EndAddr)
		}
	})
}
