package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, "127.0.0.1:8765", cfg.AgentAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)            // Default
	assert.Equal(t, BackendSQLite, cfg.QueueBackend)
	assert.Equal(t, "offline_transaction_queue", cfg.QueueSlotKey)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.True(t, cfg.SyncOnStart)
	assert.Equal(t, "https://api.example.com/health", cfg.ProbeURL)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_MissingAPIBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "API_BASE_URL is required")
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("QUEUE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required when QUEUE_BACKEND=postgres")
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("QUEUE_BACKEND", "redis")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "redis"`)
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("HTTP_TIMEOUT", "soon")
	t.Setenv("SYNC_ON_START", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_BASE_URL is required")
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT: invalid duration")
	assert.Contains(t, err.Error(), "SYNC_ON_START: invalid boolean")
}

func TestLoad_ExplicitProbeURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("PROBE_URL", "https://status.example.com/ping")
	t.Setenv("SYNC_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://status.example.com/ping", cfg.ProbeURL)
	assert.Zero(t, cfg.SyncInterval)
}

func validConfig() *Config {
	return &Config{
		AgentAddr:     ":8765",
		DeviceID:      "device-1",
		APIBaseURL:    "https://api.example.com",
		HTTPTimeout:   10 * time.Second,
		QueueBackend:  BackendMemory,
		QueueSlotKey:  "offline_transaction_queue",
		SyncInterval:  time.Minute,
		ProbeInterval: 15 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "sync disabled", mutate: func(c *Config) { c.SyncInterval = 0 }},
		{
			name:    "sync interval too short",
			mutate:  func(c *Config) { c.SyncInterval = 100 * time.Millisecond },
			wantErr: "SyncInterval must be 0 or at least 1 second",
		},
		{
			name:    "probe interval too short",
			mutate:  func(c *Config) { c.ProbeInterval = 0 },
			wantErr: "ProbeInterval must be at least 1 second",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.QueueBackend = BackendSQLite },
			wantErr: "SQLitePath is required",
		},
		{
			name:    "missing slot key",
			mutate:  func(c *Config) { c.QueueSlotKey = "" },
			wantErr: "QueueSlotKey is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
