package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	if cfg.Engine.CyclePeriodMs < 10 {
		return fmt.Errorf("engine.cycle_period_ms must be at least 10, got %d", cfg.Engine.CyclePeriodMs)
	}
	if cfg.Engine.StalenessTimeoutMs < cfg.Engine.CyclePeriodMs {
		return fmt.Errorf("engine.staleness_timeout_ms (%d) must not be shorter than the cycle period (%d)",
			cfg.Engine.StalenessTimeoutMs, cfg.Engine.CyclePeriodMs)
	}
	if err := validateThresholds(cfg.Engine.Thresholds); err != nil {
		return err
	}

	if cfg.Alerts.Sinks.Dashboard.URL != "" {
		if err := validateHTTPURL("alerts.sinks.dashboard.url", cfg.Alerts.Sinks.Dashboard.URL); err != nil {
			return err
		}
	}
	if cfg.Alerts.Sinks.Voice.URL != "" {
		if err := validateHTTPURL("alerts.sinks.voice.url", cfg.Alerts.Sinks.Voice.URL); err != nil {
			return err
		}
	}
	if cfg.Alerts.Sinks.Buzzer.Intensity < 0 || cfg.Alerts.Sinks.Buzzer.Intensity > 100 {
		return fmt.Errorf("alerts.sinks.buzzer.intensity must be 0..100, got %d", cfg.Alerts.Sinks.Buzzer.Intensity)
	}

	if cfg.Advisor.Enabled {
		if err := validateHTTPURL("advisor.base_url", cfg.Advisor.BaseURL); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Advisor.Model) == "" {
			return errors.New("advisor.model must be set when the advisor is enabled")
		}
	}

	if !cfg.Ultrasonic.Simulate && strings.TrimSpace(cfg.Ultrasonic.Device) == "" {
		return errors.New("ultrasonic.device must be set unless ultrasonic.simulate is true")
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateThresholds(t ThresholdsConfig) error {
	if t.EyeAspectRatio < 0 || t.EyeAspectRatio > 1 {
		return fmt.Errorf("engine.thresholds.eye_aspect_ratio must be 0..1, got %g", t.EyeAspectRatio)
	}
	if t.ProximityCm <= 0 {
		return fmt.Errorf("engine.thresholds.proximity_cm must be positive, got %g", t.ProximityCm)
	}
	if t.StressAmplitude < 0 || t.StressAmplitude > 1 {
		return fmt.Errorf("engine.thresholds.stress_amplitude must be 0..1, got %g", t.StressAmplitude)
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s has invalid url %q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https, got %q", field, u.Scheme)
	}
	return nil
}
