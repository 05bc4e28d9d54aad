package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"medbook/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("MEDBOOK_TEST_API_KEY", "secret-key")

	yamlContent := `
database:
  path: "test.db"
booking:
  slot_duration_minutes: 15
  lock:
    backend: memory
    ttl: 3s
api:
  enabled: true
  auth:
    enabled: true
    api_keys:
      - name: frontdesk
        key: "${MEDBOOK_TEST_API_KEY}"
        permissions: ["read:schedule"]
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Booking.SlotDurationMinutes != 15 {
		t.Errorf("expected slot duration 15, got %d", cfg.Booking.SlotDurationMinutes)
	}
	if cfg.Booking.SlotDuration() != 15*time.Minute {
		t.Errorf("expected slot duration 15m, got %s", cfg.Booking.SlotDuration())
	}
	if cfg.Booking.Lock.TTL != 3*time.Second {
		t.Errorf("expected lock ttl 3s, got %s", cfg.Booking.Lock.TTL)
	}
	if len(cfg.API.Auth.APIKeys) != 1 || cfg.API.Auth.APIKeys[0].Key != "secret-key" {
		t.Errorf("expected api key expanded from env, got %+v", cfg.API.Auth.APIKeys)
	}
	if !cfg.API.HTTP.Enabled {
		t.Errorf("expected http enabled when api is enabled")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		cfg := Config{Database: DatabaseConfig{Path: "path"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "slot duration not dividing a day", mutate: func(c *Config) { c.Booking.SlotDurationMinutes = 7 }, wantErr: true},
		{name: "unknown lock backend", mutate: func(c *Config) { c.Booking.Lock.Backend = "etcd" }, wantErr: true},
		{name: "redis lock without address", mutate: func(c *Config) { c.Booking.Lock.Backend = LockBackendRedis }, wantErr: true},
		{
			name: "redis lock with address",
			mutate: func(c *Config) {
				c.Booking.Lock.Backend = LockBackendRedis
				c.Redis.Address = "localhost:6379"
			},
		},
		{
			name: "duplicate api key",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.APIKeys = []APIClientKey{{Name: "a", Key: "k"}, {Name: "b", Key: "k"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Booking.SlotDurationMinutes != models.DefaultSlotDurationMinutes {
		t.Errorf("expected default slot duration %d, got %d", models.DefaultSlotDurationMinutes, cfg.Booking.SlotDurationMinutes)
	}
	if cfg.Booking.MaxBookingDays != models.DefaultMaxBookingDays {
		t.Errorf("expected default booking horizon %d, got %d", models.DefaultMaxBookingDays, cfg.Booking.MaxBookingDays)
	}
	if cfg.Booking.Lock.Backend != LockBackendMemory {
		t.Errorf("expected default lock backend memory, got %s", cfg.Booking.Lock.Backend)
	}
	if cfg.Booking.Pregenerate.Days != 14 || cfg.Booking.Pregenerate.Interval != time.Hour {
		t.Errorf("unexpected pregenerate defaults: %+v", cfg.Booking.Pregenerate)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
}
