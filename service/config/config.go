package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Queue storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Agent configuration
	AgentAddr string
	LogLevel  string
	DeviceID  string

	// Remote finance API
	APIBaseURL  string
	APIToken    string
	HTTPTimeout time.Duration

	// Queue storage
	QueueBackend string
	SQLitePath   string
	DatabaseURL  string
	QueueSlotKey string

	// NATS configuration (empty URL disables publishing)
	NATSURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Sync triggers
	SyncInterval  time.Duration
	SyncOnStart   bool
	ProbeURL      string
	ProbeInterval time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.AgentAddr = getEnvOrDefault("AGENT_ADDR", "127.0.0.1:8765")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DeviceID = getEnvOrDefault("DEVICE_ID", "default-device")

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL is required"))
	}
	cfg.APIToken = os.Getenv("API_TOKEN")

	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.HTTPTimeout = httpTimeout
	}

	cfg.QueueBackend = getEnvOrDefault("QUEUE_BACKEND", BackendSQLite)
	cfg.SQLitePath = getEnvOrDefault("SQLITE_PATH", "./data/ledgersync.db")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.QueueSlotKey = getEnvOrDefault("QUEUE_SLOT_KEY", "offline_transaction_queue")

	switch cfg.QueueBackend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required when QUEUE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("QUEUE_BACKEND: unknown backend %q (want sqlite, postgres or memory)", cfg.QueueBackend))
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "ledgersync-sync")

	syncInterval, err := parseDuration("SYNC_INTERVAL", "1m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SyncInterval = syncInterval
	}

	syncOnStart, err := parseBool("SYNC_ON_START", true)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SyncOnStart = syncOnStart
	}

	cfg.ProbeURL = os.Getenv("PROBE_URL")
	if cfg.ProbeURL == "" && cfg.APIBaseURL != "" {
		cfg.ProbeURL = cfg.APIBaseURL + "/health"
	}

	probeInterval, err := parseDuration("PROBE_INTERVAL", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProbeInterval = probeInterval
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.APIBaseURL == "" {
		errs = append(errs, fmt.Errorf("APIBaseURL is required"))
	}

	if c.DeviceID == "" {
		errs = append(errs, fmt.Errorf("DeviceID is required"))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTPTimeout must be positive"))
	}

	switch c.QueueBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("SQLitePath is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DatabaseURL is required for the postgres backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("QueueBackend %q is not supported", c.QueueBackend))
	}

	if c.QueueSlotKey == "" {
		errs = append(errs, fmt.Errorf("QueueSlotKey is required"))
	}

	// zero disables the periodic sweep
	if c.SyncInterval < 0 || (c.SyncInterval > 0 && c.SyncInterval < time.Second) {
		errs = append(errs, fmt.Errorf("SyncInterval must be 0 or at least 1 second"))
	}

	if c.ProbeInterval < time.Second {
		errs = append(errs, fmt.Errorf("ProbeInterval must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
