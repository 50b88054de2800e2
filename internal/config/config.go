// Package config loads the gateway configuration from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// DBSource is the Postgres DSN. Empty selects the in-memory store.
	DBSource string `mapstructure:"DB_SOURCE"`
	Port     string `mapstructure:"SERVER_PORT"`
	Env      string `mapstructure:"ENVIRONMENT"`

	// Write contention model.
	BaseWriteLatencyMS int     `mapstructure:"BASE_WRITE_LATENCY_MS"`
	ContentionFactor   float64 `mapstructure:"CONTENTION_FACTOR"`
	// SessionWriteContention routes code session inserts through the contended write path as well.
	SessionWriteContention bool `mapstructure:"SESSION_WRITE_CONTENTION"`
	// AuditWriteLatencyMS adds an audit row, delayed by this much, after each intent write. 0 disables auditing.
	AuditWriteLatencyMS int `mapstructure:"AUDIT_WRITE_LATENCY_MS"`

	// Code issuance and retry.
	CodeValidity   string `mapstructure:"CODE_VALIDITY"`
	OTPDeadlineMS  int    `mapstructure:"OTP_DEADLINE_MS"`
	RetryCount     int    `mapstructure:"RETRY_COUNT"`
	RetryDelayMS   int    `mapstructure:"RETRY_DELAY_MS"`
	PollIntervalMS int    `mapstructure:"POLL_INTERVAL_MS"`

	// OTLPEndpoint enables trace and metric export when set (e.g. "localhost:4317").
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated broker list. Empty disables event publishing.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("DB_SOURCE", "")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("BASE_WRITE_LATENCY_MS", 15)
	v.SetDefault("CONTENTION_FACTOR", 1.5)
	v.SetDefault("SESSION_WRITE_CONTENTION", false)
	v.SetDefault("AUDIT_WRITE_LATENCY_MS", 0)
	v.SetDefault("CODE_VALIDITY", "2m")
	v.SetDefault("OTP_DEADLINE_MS", 400)
	v.SetDefault("RETRY_COUNT", 3)
	v.SetDefault("RETRY_DELAY_MS", 100)
	v.SetDefault("POLL_INTERVAL_MS", 10)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "paygate-events")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("config: SERVER_PORT must be set")
	}
	if c.BaseWriteLatencyMS < 0 {
		return errors.New("config: BASE_WRITE_LATENCY_MS must not be negative")
	}
	if c.ContentionFactor < 0 {
		return errors.New("config: CONTENTION_FACTOR must not be negative")
	}
	if c.AuditWriteLatencyMS < 0 {
		return errors.New("config: AUDIT_WRITE_LATENCY_MS must not be negative")
	}
	if c.OTPDeadlineMS < 0 {
		return errors.New("config: OTP_DEADLINE_MS must not be negative")
	}
	if c.RetryCount < 0 {
		return errors.New("config: RETRY_COUNT must not be negative")
	}
	if c.RetryDelayMS < 0 {
		return errors.New("config: RETRY_DELAY_MS must not be negative")
	}
	if c.PollIntervalMS <= 0 {
		return errors.New("config: POLL_INTERVAL_MS must be positive")
	}
	if d, err := time.ParseDuration(c.CodeValidity); err != nil || d <= 0 {
		return errors.New("config: CODE_VALIDITY must be a positive duration (e.g. 2m)")
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c *Config) BaseWriteLatency() time.Duration  { return ms(c.BaseWriteLatencyMS) }
func (c *Config) AuditWriteLatency() time.Duration { return ms(c.AuditWriteLatencyMS) }
func (c *Config) OTPDeadline() time.Duration       { return ms(c.OTPDeadlineMS) }
func (c *Config) RetryDelay() time.Duration        { return ms(c.RetryDelayMS) }
func (c *Config) PollInterval() time.Duration      { return ms(c.PollIntervalMS) }

// Validity parses CodeValidity. Returns 2m if unset or invalid.
func (c *Config) Validity() time.Duration {
	d, err := time.ParseDuration(c.CodeValidity)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated KafkaBrokers.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
