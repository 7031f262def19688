package telemetry

import "testing"

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "missing version", mutate: func(c *Config) { c.ServiceVersion = "" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }, wantErr: true},
		{name: "exporter ignored when disabled", mutate: func(c *Config) { c.Tracing.Exporter = "jaeger" }},
		{name: "bad sampling rate", mutate: func(c *Config) { c.Tracing.SamplingRate = 1.5 }, wantErr: true},
		{name: "metrics without address", mutate: func(c *Config) { c.Metrics.ListenAddress = "" }, wantErr: true},
		{name: "events without buffer", mutate: func(c *Config) { c.Events.BufferSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPresetConfigs(t *testing.T) {
	for name, cfg := range map[string]*Config{
		"production":  ProductionConfig(),
		"development": DevelopmentConfig(),
	} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s config invalid: %v", name, err)
		}
	}

	if ProductionConfig().Logging.Format != "json" {
		t.Error("production config should log JSON")
	}
	if DevelopmentConfig().Logging.Level != "debug" {
		t.Error("development config should log at debug")
	}
}
