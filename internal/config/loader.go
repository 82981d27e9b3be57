package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".edlscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file structure.
// It holds global defaults plus named per-device profiles, so one file
// can describe several targets with different memory maps and loaders.
type File struct {
	// Defaults applies to every run unless a profile overrides it.
	Defaults Profile `yaml:"defaults"`

	// Profiles maps profile names to device-specific settings.
	Profiles map[string]Profile `yaml:"profiles"`
}

// Profile is one device profile from the configuration file.
// Addresses are written as hex strings ("0x00700000") because that is
// how every datasheet and memory map presents them.
type Profile struct {
	// StartAddr is the scan range start, hex string.
	StartAddr string `yaml:"start_addr"`

	// EndAddr is the scan range end, hex string.
	EndAddr string `yaml:"end_addr"`

	// Step is the read step in bytes.
	Step int `yaml:"step"`

	// ReadDelay is the inter-read delay (e.g. "10ms").
	ReadDelay Duration `yaml:"read_delay"`

	// Loader is the Firehose programmer for this device.
	Loader string `yaml:"loader"`

	// EDLBinary overrides the EDL tool path.
	EDLBinary string `yaml:"edl_binary"`
}

// Duration wraps time.Duration so YAML profiles can write delays in Go
// duration syntax ("10ms"). yaml.v3 has no native decoding for
// time.Duration.
type Duration time.Duration

// UnmarshalYAML parses a duration scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfigFile loads device profiles from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound; callers decide
// whether that is fatal based on whether the path was explicit.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Profiles == nil {
		cf.Profiles = make(map[string]Profile)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in order:
// the explicit path if given, then .edlscan in the current directory,
// then .edlscan in the user's home directory.
// Returns the path found, or empty string.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// parseHexAddr parses an address written as "0x..." or bare hex.
func parseHexAddr(s string) (uint32, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	return uint32(v), nil
}

// ParseHexAddr is the exported form used by CLI flag handling.
func ParseHexAddr(s string) (uint32, error) {
	return parseHexAddr(s)
}
