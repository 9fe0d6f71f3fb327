// Package config handles configuration loading and management for vapixprobe.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for vapixprobe
type Config struct {
	Device Device `yaml:"device"`
	Paths  Paths  `yaml:"paths"`
	Runner Runner `yaml:"runner"`
	Output Output `yaml:"output"`
}

// Device defines defaults for the target device
type Device struct {
	IP       string `yaml:"ip"`
	Username string `yaml:"username"`
	Scheme   string `yaml:"scheme"` // http or https
	// Devices ship self-signed certificates; verification stays off
	// unless explicitly enabled.
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// Paths defines where generated and recorded files live
type Paths struct {
	PayloadRoot string `yaml:"payload_root"`
	LogDir      string `yaml:"log_dir"`
	ReportDir   string `yaml:"report_dir"`
	Settings    string `yaml:"settings"`
}

// Runner defines batch execution defaults
type Runner struct {
	Interval         time.Duration `yaml:"interval"`
	Workers          int           `yaml:"workers"`
	SimHashThreshold int           `yaml:"simhash_threshold"`
	EnableDrift      bool          `yaml:"enable_drift"`
}

// Output defines report and console output defaults
type Output struct {
	ReportFormat string `yaml:"report_format"` // json or markdown
	Verbose      bool   `yaml:"verbose"`
	Quiet        bool   `yaml:"quiet"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Device: Device{
			Scheme:             "http",
			InsecureSkipVerify: true,
			Timeout:            10 * time.Second,
		},
		Paths: Paths{
			PayloadRoot: "payloads",
			LogDir:      "logs",
			ReportDir:   "reports",
			Settings:    "settings.json",
		},
		Runner: Runner{
			Workers:          8,
			SimHashThreshold: 15,
			EnableDrift:      true,
		},
		Output: Output{
			ReportFormat: "json",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is
// not an error: the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Device.Scheme != "http" && c.Device.Scheme != "https" {
		return fmt.Errorf("config: scheme must be http or https, got %q", c.Device.Scheme)
	}
	if c.Device.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	if c.Runner.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive")
	}
	switch c.Output.ReportFormat {
	case "json", "markdown", "md":
	default:
		return fmt.Errorf("config: unknown report_format %q", c.Output.ReportFormat)
	}
	return nil
}
