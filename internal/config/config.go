package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds Sheero configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Engine     EngineConfig     `yaml:"engine"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Advisor    AdvisorConfig    `yaml:"advisor"`
	Vision     VisionConfig     `yaml:"vision"`
	Ultrasonic UltrasonicConfig `yaml:"ultrasonic"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`       // HTTP listen address, e.g. ":8090"
	AuthToken string `yaml:"auth_token"` // bearer token for signal endpoints; empty disables auth
}

type EngineConfig struct {
	CyclePeriodMs      int              `yaml:"cycle_period_ms"`
	StalenessTimeoutMs int              `yaml:"staleness_timeout_ms"`
	Thresholds         ThresholdsConfig `yaml:"thresholds"`
	Windows            WindowsConfig    `yaml:"windows"`
	BlindSpot          BlindSpotConfig  `yaml:"blind_spot"`
}

type ThresholdsConfig struct {
	EyeAspectRatio  float64 `yaml:"eye_aspect_ratio"`
	HeadBow         float64 `yaml:"head_bow"`
	ProximityCm     float64 `yaml:"proximity_cm"`
	StressAmplitude float64 `yaml:"stress_amplitude"`
}

type WindowsConfig struct {
	FatigueMs       int `yaml:"fatigue_ms"`
	StressMs        int `yaml:"stress_ms"`
	ProximityCycles int `yaml:"proximity_cycles"`
	CooldownMs      int `yaml:"cooldown_ms"`
}

type BlindSpotConfig struct {
	// AlwaysWarn escalates proximity alone, ignoring turn intent.
	AlwaysWarn bool `yaml:"always_warn"`
}

type AlertsConfig struct {
	QueueSize        int             `yaml:"queue_size"`
	Workers          int             `yaml:"workers"`
	DeliverTimeoutMs int             `yaml:"deliver_timeout_ms"`
	RateLimits       RateLimitConfig `yaml:"rate_limits"`
	Sinks            SinksConfig     `yaml:"sinks"`
}

type RateLimitConfig struct {
	// Minimum spacing between events for the same flag, in ms.
	DrowsyMs    int `yaml:"drowsy_ms"`
	StressedMs  int `yaml:"stressed_ms"`
	BlindSpotMs int `yaml:"blind_spot_ms"`
}

type SinksConfig struct {
	Dashboard DashboardSinkConfig `yaml:"dashboard"`
	Buzzer    BuzzerSinkConfig    `yaml:"buzzer"`
	Voice     VoiceSinkConfig     `yaml:"voice"`
	LogFile   string              `yaml:"log_file"` // JSONL audit path; empty disables
}

type DashboardSinkConfig struct {
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	TimeoutMs int               `yaml:"timeout_ms"`
}

type BuzzerSinkConfig struct {
	Device    string `yaml:"device"` // character device path; empty disables
	Intensity int    `yaml:"intensity"`
}

type VoiceSinkConfig struct {
	URL        string `yaml:"url"` // TTS collaborator endpoint; empty logs tips instead
	TimeoutMs  int    `yaml:"timeout_ms"`
	CooldownMs int    `yaml:"cooldown_ms"`
}

type AdvisorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"` // e.g. "http://localhost:11434"
	Model     string `yaml:"model"`    // e.g. "mistral"
	TimeoutMs int    `yaml:"timeout_ms"`
}

type VisionConfig struct {
	// BundleDir points at a drowsiness model bundle; empty uses the
	// threshold heuristic only.
	BundleDir string `yaml:"bundle_dir"`
}

type UltrasonicConfig struct {
	Device      string `yaml:"device"` // serial device path
	Simulate    bool   `yaml:"simulate"`
	DutyCycleMs int    `yaml:"duty_cycle_ms"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // OTLP endpoint, e.g. "localhost:4317"
	Protocol string `yaml:"protocol"` // "grpc" (default) or "http"
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8090"
	}

	if cfg.Engine.CyclePeriodMs <= 0 {
		cfg.Engine.CyclePeriodMs = 40
	}
	if cfg.Engine.StalenessTimeoutMs <= 0 {
		cfg.Engine.StalenessTimeoutMs = 1500
	}
	if cfg.Engine.Thresholds.EyeAspectRatio == 0 {
		cfg.Engine.Thresholds.EyeAspectRatio = 0.18
	}
	if cfg.Engine.Thresholds.ProximityCm == 0 {
		cfg.Engine.Thresholds.ProximityCm = 100
	}
	if cfg.Engine.Thresholds.StressAmplitude == 0 {
		cfg.Engine.Thresholds.StressAmplitude = 0.7
	}
	if cfg.Engine.Windows.FatigueMs <= 0 {
		cfg.Engine.Windows.FatigueMs = 2000
	}
	if cfg.Engine.Windows.StressMs <= 0 {
		cfg.Engine.Windows.StressMs = 1000
	}
	if cfg.Engine.Windows.ProximityCycles <= 0 {
		cfg.Engine.Windows.ProximityCycles = 1
	}
	if cfg.Engine.Windows.CooldownMs <= 0 {
		cfg.Engine.Windows.CooldownMs = 800
	}

	if cfg.Alerts.QueueSize <= 0 {
		cfg.Alerts.QueueSize = 64
	}
	if cfg.Alerts.Workers <= 0 {
		cfg.Alerts.Workers = 1
	}
	if cfg.Alerts.DeliverTimeoutMs <= 0 {
		cfg.Alerts.DeliverTimeoutMs = 2000
	}
	if cfg.Alerts.RateLimits.DrowsyMs <= 0 {
		cfg.Alerts.RateLimits.DrowsyMs = 5000
	}
	if cfg.Alerts.RateLimits.StressedMs <= 0 {
		cfg.Alerts.RateLimits.StressedMs = 5000
	}
	if cfg.Alerts.RateLimits.BlindSpotMs <= 0 {
		cfg.Alerts.RateLimits.BlindSpotMs = 1000
	}
	if cfg.Alerts.Sinks.Dashboard.TimeoutMs <= 0 {
		cfg.Alerts.Sinks.Dashboard.TimeoutMs = 2000
	}
	if cfg.Alerts.Sinks.Buzzer.Intensity <= 0 {
		cfg.Alerts.Sinks.Buzzer.Intensity = 80
	}
	if cfg.Alerts.Sinks.Voice.TimeoutMs <= 0 {
		cfg.Alerts.Sinks.Voice.TimeoutMs = 10000
	}
	if cfg.Alerts.Sinks.Voice.CooldownMs <= 0 {
		cfg.Alerts.Sinks.Voice.CooldownMs = 60000
	}

	if cfg.Advisor.BaseURL == "" {
		cfg.Advisor.BaseURL = "http://localhost:11434"
	}
	if cfg.Advisor.Model == "" {
		cfg.Advisor.Model = "mistral"
	}
	if cfg.Advisor.TimeoutMs <= 0 {
		cfg.Advisor.TimeoutMs = 10000
	}

	if cfg.Ultrasonic.DutyCycleMs <= 0 {
		cfg.Ultrasonic.DutyCycleMs = 500
	}
}
