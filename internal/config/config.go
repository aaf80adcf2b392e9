package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	// OpenTelemetry (traces)
	OTELExporterOTLPEndpoint string
	OTELServiceName          string

	TradeBaseURL string
	TradeTimeout time.Duration

	// Executor retry budget. Whichever of MaxAttempts / Deadline is reached
	// first converts a retrying task to failed.
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	GrabDeadline time.Duration

	RegistryCapacity  int
	RegistryRetention time.Duration

	// PushConfigPath points at the YAML file holding channel credentials.
	PushConfigPath string

	// Account identity; cookie acquisition happens elsewhere and is handed
	// in through the environment.
	AccountUID       int64
	AccountCookie    string
	AccountUserAgent string
}

func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", ""),

		TradeBaseURL: getEnv("TRADE_BASE_URL", "https://show.bilibili.com"),
		TradeTimeout: getEnvAsDuration("TRADE_TIMEOUT", 10*time.Second),

		MaxAttempts:  getEnvAsInt("GRAB_MAX_ATTEMPTS", 60),
		BackoffBase:  getEnvAsDuration("GRAB_BACKOFF_BASE", 300*time.Millisecond),
		BackoffMax:   getEnvAsDuration("GRAB_BACKOFF_MAX", 5*time.Second),
		GrabDeadline: getEnvAsDuration("GRAB_DEADLINE", 10*time.Minute),

		RegistryCapacity:  getEnvAsInt("REGISTRY_CAPACITY", 256),
		RegistryRetention: getEnvAsDuration("REGISTRY_RETENTION", 10*time.Minute),

		PushConfigPath: getEnv("PUSH_CONFIG_PATH", "push.yaml"),

		AccountUID:       getEnvAsInt64("ACCOUNT_UID", 0),
		AccountCookie:    getEnv("ACCOUNT_COOKIE", ""),
		AccountUserAgent: getEnv("ACCOUNT_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"),
	}
}

func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}
	if c.TradeBaseURL == "" {
		return fmt.Errorf("TRADE_BASE_URL is required")
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 1000 {
		return fmt.Errorf("GRAB_MAX_ATTEMPTS must be 1..1000")
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("GRAB_BACKOFF_BASE must be > 0")
	}
	if c.BackoffMax <= 0 {
		return fmt.Errorf("GRAB_BACKOFF_MAX must be > 0")
	}
	if c.GrabDeadline <= 0 {
		return fmt.Errorf("GRAB_DEADLINE must be > 0")
	}
	if c.RegistryCapacity < 1 {
		return fmt.Errorf("REGISTRY_CAPACITY must be >= 1")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
