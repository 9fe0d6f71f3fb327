package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.Scheme != "http" {
		t.Errorf("Scheme = %q, want http", cfg.Device.Scheme)
	}
	if cfg.Device.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Device.Timeout)
	}
	if !cfg.Device.InsecureSkipVerify {
		t.Error("InsecureSkipVerify should default to true")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("device:\n  ip: 192.168.0.90\n  scheme: https\nrunner:\n  workers: 2\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.IP != "192.168.0.90" {
		t.Errorf("IP = %q", cfg.Device.IP)
	}
	if cfg.Device.Scheme != "https" {
		t.Errorf("Scheme = %q, want https", cfg.Device.Scheme)
	}
	if cfg.Runner.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Runner.Workers)
	}
	// Untouched sections keep their defaults.
	if cfg.Paths.PayloadRoot != "payloads" {
		t.Errorf("PayloadRoot = %q, want payloads", cfg.Paths.PayloadRoot)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad scheme", "device:\n  scheme: ftp\n"},
		{"zero workers", "runner:\n  workers: 0\n"},
		{"bad format", "output:\n  report_format: pdf\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
