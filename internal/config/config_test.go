package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "store:\n  driver: memory\n"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 10, cfg.AccessCodes.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Lockout.Window)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "admin", cfg.JWT.AdminRole)
}

func TestLoadConfig_FileValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
server:
  port: 9090
store:
  driver: postgres
database:
  host: db
  name: hospital
access_codes:
  max_attempts: 4
lockout:
  max_failures: 3
  window: 1m
`))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "hospital", cfg.Database.Name)
	assert.Equal(t, 4, cfg.AccessCodes.MaxAttempts)
	assert.Equal(t, 3, cfg.Lockout.MaxFailures)
	assert.Equal(t, time.Minute, cfg.Lockout.Window)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "store:\n  driver: memory\n"))
	t.Setenv("HOSPITAL_SERVER_PORT", "7070")
	t.Setenv("HOSPITAL_JWT_SECRET", "s3cret")
	t.Setenv("HOSPITAL_DB_PASSWORD", "pw")
	t.Setenv("HOSPITAL_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("HOSPITAL_PAYLOAD_KEY", "seal-me")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "pw", cfg.Database.Password)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, "seal-me", cfg.Outbox.PayloadKey)
}

func TestLoadConfig_InvalidDriver(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "store:\n  driver: cassandra\n"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:       StoreConfig{Driver: "memory"},
			AccessCodes: AccessCodeConfig{MaxAttempts: 10},
			Outbox:      OutboxConfig{BatchSize: 10, PollInterval: time.Second, RetryAttempts: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "mongo without uri", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: true},
		{name: "mongo with uri", mutate: func(c *Config) {
			c.Store.Driver = "mongo"
			c.Mongo.URI = "mongodb://localhost:27017"
		}},
		{name: "zero attempts", mutate: func(c *Config) { c.AccessCodes.MaxAttempts = 0 }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.Outbox.BatchSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
