package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/var/db/quarry/pkgdb.sqlite" {
		t.Errorf("unexpected default database path: %s", cfg.Database.Path)
	}
	if cfg.Telemetry.LogLevel != "info" {
		t.Errorf("unexpected default log level: %s", cfg.Telemetry.LogLevel)
	}
	if !cfg.Policy.Enabled {
		t.Error("policy enforcement should default to enabled")
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "quarry.yaml")

	content := `database:
  path: /tmp/test.sqlite
policy:
  holds:
    - linux-firmware
    - base-devel
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/test.sqlite" {
		t.Errorf("database path not loaded: %s", cfg.Database.Path)
	}
	if cfg.Database.BusyTimeout != 5*time.Second {
		t.Errorf("busy timeout default not applied: %v", cfg.Database.BusyTimeout)
	}
	if len(cfg.Policy.Holds) != 2 || cfg.Policy.Holds[0] != "linux-firmware" {
		t.Errorf("holds not loaded: %v", cfg.Policy.Holds)
	}
	if cfg.Telemetry.LogFormat != "console" {
		t.Errorf("log format default not applied: %s", cfg.Telemetry.LogFormat)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.yaml")

	if err := os.WriteFile(path, []byte("database: [not a mapping"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "quarry.yaml")

	content := `telemetry:
  log_level: loud
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for bad log level")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/quarry.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTelemetryConfigMapping(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.LogLevel = "debug"
	cfg.Telemetry.LogFormat = "json"
	cfg.Telemetry.Tracing.Enabled = true
	cfg.Telemetry.Tracing.Exporter = "otlp"
	cfg.Telemetry.Tracing.Endpoint = "collector:4317"
	cfg.Telemetry.Metrics.Enabled = true

	tc := cfg.TelemetryConfig("1.2.3")

	if tc.ServiceName != "quarry" {
		t.Errorf("unexpected service name: %s", tc.ServiceName)
	}
	if tc.ServiceVersion != "1.2.3" {
		t.Errorf("version not mapped: %s", tc.ServiceVersion)
	}
	if tc.Logging.Level != "debug" || tc.Logging.Format != "json" {
		t.Errorf("logging not mapped: %+v", tc.Logging)
	}
	if !tc.Tracing.Enabled || tc.Tracing.Endpoint != "collector:4317" {
		t.Errorf("tracing not mapped: %+v", tc.Tracing)
	}
	if !tc.Metrics.Enabled {
		t.Error("metrics not mapped")
	}
	if err := tc.Validate(); err != nil {
		t.Fatalf("mapped telemetry config invalid: %v", err)
	}
}
