package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultTelemetryBaseURL is the realtime database the field devices publish to.
const DefaultTelemetryBaseURL = "https://flood-detector-f5cae-default-rtdb.firebaseio.com"

// Config holds all service settings, populated from environment variables.
type Config struct {
	TelemetryBaseURL string
	TelemetryTimeout time.Duration

	// DefaultDevice is the device selected at startup. Empty means the first
	// catalog entry.
	DefaultDevice string

	ConnectivityInterval time.Duration
	ProbeURL             string
	ProbeTimeout         time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Alert feed configuration.
	KafkaBrokers    []string
	KafkaAlertTopic string
	AlertsEnabled   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	telemetryTimeout, err := parsePositiveDuration("TELEMETRY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	interval, err := parsePositiveDuration("CONNECTIVITY_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	probeTimeout, err := parsePositiveDuration("PROBE_TIMEOUT", "3s")
	if err != nil {
		return nil, err
	}

	baseURL := sharedcfg.EnvOrDefault("TELEMETRY_BASE_URL", DefaultTelemetryBaseURL)
	if err := validateURL("TELEMETRY_BASE_URL", baseURL); err != nil {
		return nil, err
	}
	probeURL := sharedcfg.EnvOrDefault("PROBE_URL", baseURL)
	if err := validateURL("PROBE_URL", probeURL); err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	alertsEnabled := len(brokers) > 0
	if v := os.Getenv("ALERTS_ENABLED"); v != "" {
		alertsEnabled = v == "true"
	}

	cfg := &Config{
		TelemetryBaseURL:     baseURL,
		TelemetryTimeout:     telemetryTimeout,
		DefaultDevice:        os.Getenv("DEFAULT_DEVICE"),
		ConnectivityInterval: interval,
		ProbeURL:             probeURL,
		ProbeTimeout:         probeTimeout,
		HTTPAddr:             sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:             sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:      shutdownTimeout,
		KafkaBrokers:         brokers,
		KafkaAlertTopic:      sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "flood-alerts"),
		AlertsEnabled:        alertsEnabled,
	}

	if cfg.AlertsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("ALERTS_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.AlertsEnabled && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when alerts are enabled")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
