package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quarrypkg/quarry/pkg/telemetry"
)

var validate = validator.New()

// Config is the top-level quarry configuration.
type Config struct {
	// Database configures the installed-package database.
	Database DatabaseConfig `yaml:"database"`

	// Policy configures removal-policy enforcement.
	Policy PolicyConfig `yaml:"policy"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseConfig configures the package database.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" validate:"required"`

	// BusyTimeout is how long to wait on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WatchExternal enables invalidating cached snapshots when another
	// process writes the database file.
	WatchExternal bool `yaml:"watch_external"`
}

// PolicyConfig configures removal-policy enforcement.
type PolicyConfig struct {
	// Enabled indicates if policy enforcement is active.
	Enabled bool `yaml:"enabled"`

	// Paths lists extra policy files or directories to load.
	Paths []string `yaml:"paths"`

	// Holds lists package names pinned against autoremoval.
	Holds []string `yaml:"holds"`

	// WatchPaths enables hot reload of policy files.
	WatchPaths bool `yaml:"watch_paths"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	// LogLevel sets the minimum log level.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// LogFormat selects console or json output.
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`

	// Tracing configures trace export.
	Tracing TracingConfig `yaml:"tracing"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// TracingConfig configures trace export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:          "/var/db/quarry/pkgdb.sqlite",
			BusyTimeout:   5 * time.Second,
			WatchExternal: true,
		},
		Policy: PolicyConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "console",
			Tracing: TracingConfig{
				Enabled:      false,
				Exporter:     "stdout",
				SamplingRate: 1.0,
			},
			Metrics: MetricsConfig{
				Enabled:       false,
				ListenAddress: ":9090",
				Path:          "/metrics",
			},
		},
	}
}

// Load reads a YAML configuration file, fills in defaults and validates
// the result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = def.Database.BusyTimeout
	}
	if c.Telemetry.LogLevel == "" {
		c.Telemetry.LogLevel = def.Telemetry.LogLevel
	}
	if c.Telemetry.LogFormat == "" {
		c.Telemetry.LogFormat = def.Telemetry.LogFormat
	}
	if c.Telemetry.Tracing.Exporter == "" {
		c.Telemetry.Tracing.Exporter = def.Telemetry.Tracing.Exporter
	}
	if c.Telemetry.Metrics.ListenAddress == "" {
		c.Telemetry.Metrics.ListenAddress = def.Telemetry.Metrics.ListenAddress
	}
	if c.Telemetry.Metrics.Path == "" {
		c.Telemetry.Metrics.Path = def.Telemetry.Metrics.Path
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// TelemetryConfig maps the file configuration onto the telemetry
// package's configuration, keeping its defaults for everything the file
// does not cover.
func (c *Config) TelemetryConfig(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Logging.Level = c.Telemetry.LogLevel
	tc.Logging.Format = c.Telemetry.LogFormat
	tc.Tracing.Enabled = c.Telemetry.Tracing.Enabled
	tc.Tracing.Exporter = c.Telemetry.Tracing.Exporter
	tc.Tracing.Endpoint = c.Telemetry.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Telemetry.Tracing.SamplingRate
	tc.Metrics.Enabled = c.Telemetry.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Telemetry.Metrics.ListenAddress
	tc.Metrics.Path = c.Telemetry.Metrics.Path
	return tc
}
