package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Verifier  VerifierConfig  `yaml:"verifier"`
	Consensus ConsensusConfig `yaml:"consensus"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the evaluation interval.
type ScheduleConfig struct {
	EvaluateInterval string `yaml:"evaluate_interval"`
	Workers          int    `yaml:"workers"`
}

// ParseEvaluateInterval returns the evaluation interval as time.Duration.
func (s ScheduleConfig) ParseEvaluateInterval() time.Duration {
	d, err := time.ParseDuration(s.EvaluateInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// ScoringConfig configures the decay/boost model and display classifier.
type ScoringConfig struct {
	DecayRate      float64 `yaml:"decay_rate"`
	DecayFloor     float64 `yaml:"decay_floor"`
	BoostStep      float64 `yaml:"boost_step"`
	BoostCap       float64 `yaml:"boost_cap"`
	KeyEventCutoff float64 `yaml:"key_event_cutoff"`
	ArchiveDays    int     `yaml:"archive_days"`
}

// VerifierConfig configures prediction verification.
type VerifierConfig struct {
	StableTolerance float64 `yaml:"stable_tolerance"`
}

// ConsensusConfig configures alerting thresholds on the consensus view.
type ConsensusConfig struct {
	// AlertClarity is the minimum |bullish - 50| that triggers an alert.
	AlertClarity int `yaml:"alert_clarity"`
	// MinSignals is the minimum active signals before alerting.
	MinSignals int `yaml:"min_signals"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./pulse.db"},
		Schedule: ScheduleConfig{
			EvaluateInterval: "24h",
			Workers:          8,
		},
		Scoring: ScoringConfig{
			DecayRate:      0.1,
			DecayFloor:     0.1,
			BoostStep:      0.2,
			BoostCap:       2.0,
			KeyEventCutoff: 70,
			ArchiveDays:    30,
		},
		Verifier: VerifierConfig{StableTolerance: 0.02},
		Consensus: ConsensusConfig{
			AlertClarity: 15,
			MinSignals:   3,
		},
		Alerts: AlertsConfig{},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PULSE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("PULSE_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("PULSE_WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
}
