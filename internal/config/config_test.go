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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "data/mcqs.json", cfg.Store.Path)
	assert.Equal(t, "log", cfg.Delivery.Driver)
	assert.Equal(t, 30*time.Minute, TTLDuration(cfg.Scheduler.Interval, 0))
}

func TestLoadYAMLThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
store:
  driver: redis
  redis:
    addr: localhost:6379
scheduler:
  interval: 10m
  max_attempts: 3
  destination: "@edhubquiz"
delivery:
  driver: telegram
telegram:
  token: from-yaml
events:
  driver: kafka
  brokers: [kafka:9092]
`)
	t.Setenv("MCQ_TELEGRAM_TOKEN", "from-env")
	t.Setenv("MCQ_SCHEDULER_INTERVAL", "45s")
	t.Setenv("MCQ_EVENTS_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 3, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, "45s", cfg.Scheduler.Interval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown store driver":       func(c *Config) { c.Store.Driver = "sqlite" },
		"postgres without url":       func(c *Config) { c.Store.Driver = "postgres" },
		"telegram without token":     func(c *Config) { c.Delivery.Driver = "telegram"; c.Scheduler.Destination = "@q" },
		"negative attempts":          func(c *Config) { c.Scheduler.MaxAttempts = -1 },
		"bad interval":               func(c *Config) { c.Scheduler.Interval = "soon" },
		"kafka without brokers":      func(c *Config) { c.Events.Driver = "kafka" },
		"redis cache on file driver": func(c *Config) { c.Store.RedisCache = true; c.Store.Redis.Addr = "x:1" },
		"listen without token":       func(c *Config) { c.Telegram.Listen = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, 5*time.Second, TTLDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("nope", time.Minute))
}
