package telemetry

import "testing"

func TestBuiltinConfigsAreValid(t *testing.T) {
	configs := map[string]*Config{
		"default":     DefaultConfig(),
		"production":  ProductionConfig(),
		"development": DevelopmentConfig(),
	}

	for name, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s config failed validation: %v", name, err)
		}
	}

	if ProductionConfig().Logging.Format != "json" {
		t.Error("production config should log json")
	}
	if DevelopmentConfig().Logging.Level != "debug" {
		t.Error("development config should log at debug level")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"empty service version", func(c *Config) { c.ServiceVersion = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"unknown trace exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}},
		{"sampling rate above one", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"negative sampling rate", func(c *Config) { c.Tracing.SamplingRate = -0.1 }},
		{"metrics enabled without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = ""
		}},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got none", tt.name)
		}
	}
}

func TestDisabledExporterIsNotValidated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = false
	cfg.Tracing.Exporter = "bogus"

	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled tracing should not validate the exporter: %v", err)
	}
}
