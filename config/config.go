package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Rules backend selectors.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DataPaths holds data directory and file path configuration. Paths left
// empty are derived from DataDir.
type DataPaths struct {
	// DataDir is the base data directory (ARGUS_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the SQLite database file path (ARGUS_SQLITE_PATH, default: ${DataDir}/argus.db)
	SQLitePath string `mapstructure:"sqlite_path"`
	// RulesDir is the YAML rule directory for the file backend (ARGUS_RULES_DIR, default: ${DataDir}/rules)
	RulesDir string `mapstructure:"rules_dir"`
}

// Config holds all configuration for the service.
type Config struct {
	// DataPaths holds data directory configuration
	DataPaths DataPaths `mapstructure:"data_paths"`

	Rules struct {
		// Backend selects rule persistence: "file" or "sqlite"
		Backend string `mapstructure:"backend"`
	} `mapstructure:"rules"`

	API struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
		// MaxBodyBytes caps request body size
		MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
		RateLimit    struct {
			RequestsPerSecond float64 `mapstructure:"requests_per_second"`
			Burst             int     `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Matcher struct {
		// MaxTestEvents caps the events accepted by one rule-test request
		MaxTestEvents int `mapstructure:"max_test_events"`
		// PredicateCacheSize bounds the shared predicate cache
		PredicateCacheSize int `mapstructure:"predicate_cache_size"`
	} `mapstructure:"matcher"`

	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `mapstructure:"level"`
		// Development selects human-readable console output
		Development bool `mapstructure:"development"`
	} `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_paths.data_dir", "./data")
	v.SetDefault("data_paths.sqlite_path", "") // derive from data_dir
	v.SetDefault("data_paths.rules_dir", "")   // derive from data_dir
	v.SetDefault("rules.backend", BackendFile)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.max_body_bytes", 4*1024*1024)
	v.SetDefault("api.rate_limit.requests_per_second", 50)
	v.SetDefault("api.rate_limit.burst", 100)
	v.SetDefault("matcher.max_test_events", 10000)
	v.SetDefault("matcher.predicate_cache_size", 4096)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ARGUS")
	v.AutomaticEnv()

	_ = v.BindEnv("data_paths.data_dir", "ARGUS_DATA_DIR")
	_ = v.BindEnv("data_paths.sqlite_path", "ARGUS_SQLITE_PATH")
	_ = v.BindEnv("data_paths.rules_dir", "ARGUS_RULES_DIR")
	_ = v.BindEnv("rules.backend", "ARGUS_RULES_BACKEND")
	_ = v.BindEnv("api.host", "ARGUS_API_HOST")
	_ = v.BindEnv("api.port", "ARGUS_API_PORT")
	_ = v.BindEnv("logging.level", "ARGUS_LOG_LEVEL")
}

// LoadConfig loads configuration from an optional YAML file and environment
// variables. When path is empty, config.yaml is searched in the working
// directory and ./config; a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
		}
		// No config file found; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.resolveDataPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveDataPaths derives unset paths from the data directory.
func (c *Config) resolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}
	c.DataPaths.DataDir = dataDir

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "argus.db")
	} else {
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}
	if c.DataPaths.RulesDir == "" {
		c.DataPaths.RulesDir = filepath.Join(dataDir, "rules")
	} else {
		c.DataPaths.RulesDir = filepath.Clean(c.DataPaths.RulesDir)
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Rules.Backend != BackendFile && c.Rules.Backend != BackendSQLite {
		return fmt.Errorf("rules.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Rules.Backend)
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be in 1..65535, got %d", c.API.Port)
	}
	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("api.max_body_bytes must be positive, got %d", c.API.MaxBodyBytes)
	}
	if c.API.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("api.rate_limit.requests_per_second must be positive, got %g", c.API.RateLimit.RequestsPerSecond)
	}
	if c.API.RateLimit.Burst < 1 {
		return fmt.Errorf("api.rate_limit.burst must be at least 1, got %d", c.API.RateLimit.Burst)
	}
	if c.Matcher.MaxTestEvents < 1 {
		return fmt.Errorf("matcher.max_test_events must be at least 1, got %d", c.Matcher.MaxTestEvents)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

// ListenAddr is the host:port the API server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
