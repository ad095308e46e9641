package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Rules.Backend)
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
	assert.Equal(t, filepath.Join("data", "argus.db"), cfg.DataPaths.SQLitePath)
	assert.Equal(t, filepath.Join("data", "rules"), cfg.DataPaths.RulesDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10000, cfg.Matcher.MaxTestEvents)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_paths:
  data_dir: /var/lib/argus
rules:
  backend: sqlite
api:
  port: 9090
logging:
  level: debug
  development: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Rules.Backend)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, filepath.Join("/var/lib/argus", "argus.db"), cfg.DataPaths.SQLitePath)
	assert.Equal(t, filepath.Join("/var/lib/argus", "rules"), cfg.DataPaths.RulesDir)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ARGUS_RULES_BACKEND", "sqlite")
	t.Setenv("ARGUS_API_PORT", "9999")
	t.Setenv("ARGUS_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Rules.Backend)
	assert.Equal(t, 9999, cfg.API.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.Rules.Backend = "redis" }},
		{"port too low", func(c *Config) { c.API.Port = 0 }},
		{"port too high", func(c *Config) { c.API.Port = 70000 }},
		{"zero body limit", func(c *Config) { c.API.MaxBodyBytes = 0 }},
		{"zero rate", func(c *Config) { c.API.RateLimit.RequestsPerSecond = 0 }},
		{"zero burst", func(c *Config) { c.API.RateLimit.Burst = 0 }},
		{"zero test events", func(c *Config) { c.Matcher.MaxTestEvents = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
