package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheero.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8090" {
		t.Fatalf("addr = %q, want :8090", cfg.Server.Addr)
	}
	if cfg.Engine.CyclePeriodMs != 40 {
		t.Fatalf("cycle period = %d, want 40", cfg.Engine.CyclePeriodMs)
	}
	if cfg.Engine.StalenessTimeoutMs != 1500 {
		t.Fatalf("staleness = %d, want 1500", cfg.Engine.StalenessTimeoutMs)
	}
	if cfg.Engine.Thresholds.EyeAspectRatio != 0.18 {
		t.Fatalf("ear threshold = %g, want 0.18", cfg.Engine.Thresholds.EyeAspectRatio)
	}
	if cfg.Engine.Windows.FatigueMs != 2000 || cfg.Engine.Windows.CooldownMs != 800 {
		t.Fatalf("windows = %+v", cfg.Engine.Windows)
	}
	if cfg.Alerts.Sinks.Voice.CooldownMs != 60000 {
		t.Fatalf("voice cooldown = %d, want 60000", cfg.Alerts.Sinks.Voice.CooldownMs)
	}
	if cfg.Advisor.Model != "mistral" || cfg.Advisor.BaseURL != "http://localhost:11434" {
		t.Fatalf("advisor defaults = %+v", cfg.Advisor)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  auth_token: "vehicle-secret"
engine:
  cycle_period_ms: 20
  thresholds:
    proximity_cm: 120
  blind_spot:
    always_warn: true
alerts:
  sinks:
    dashboard:
      url: "http://dash.local/alert"
      headers:
        X-Api-Key: "k"
ultrasonic:
  simulate: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.AuthToken != "vehicle-secret" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Engine.CyclePeriodMs != 20 {
		t.Fatalf("cycle period = %d", cfg.Engine.CyclePeriodMs)
	}
	if cfg.Engine.Thresholds.ProximityCm != 120 {
		t.Fatalf("proximity threshold = %g", cfg.Engine.Thresholds.ProximityCm)
	}
	if !cfg.Engine.BlindSpot.AlwaysWarn {
		t.Fatalf("always_warn not set")
	}
	if cfg.Alerts.Sinks.Dashboard.Headers["X-Api-Key"] != "k" {
		t.Fatalf("headers = %+v", cfg.Alerts.Sinks.Dashboard.Headers)
	}
	// Untouched fields still get defaults.
	if cfg.Engine.Windows.StressMs != 1000 {
		t.Fatalf("stress window = %d, want default 1000", cfg.Engine.Windows.StressMs)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		cfg.Ultrasonic.Simulate = true
		return cfg
	}

	if err := Validate(valid()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil addr", func(c *Config) { c.Server.Addr = " " }},
		{"cycle too short", func(c *Config) { c.Engine.CyclePeriodMs = 5 }},
		{"staleness under cycle", func(c *Config) { c.Engine.StalenessTimeoutMs = 10 }},
		{"ear out of range", func(c *Config) { c.Engine.Thresholds.EyeAspectRatio = 1.5 }},
		{"negative proximity", func(c *Config) { c.Engine.Thresholds.ProximityCm = -1 }},
		{"bad dashboard url", func(c *Config) { c.Alerts.Sinks.Dashboard.URL = "ftp://dash" }},
		{"intensity out of range", func(c *Config) { c.Alerts.Sinks.Buzzer.Intensity = 150 }},
		{"advisor without model", func(c *Config) { c.Advisor.Enabled = true; c.Advisor.Model = " " }},
		{"serial without device", func(c *Config) { c.Ultrasonic.Simulate = false }},
		{"telemetry without endpoint", func(c *Config) { c.Telemetry.Enabled = true }},
		{"bad telemetry protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = "localhost:4317"
			c.Telemetry.Protocol = "udp"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := Validate(nil); err == nil {
		t.Fatalf("nil config must not validate")
	}
}
