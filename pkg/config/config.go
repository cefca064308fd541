package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds the settings of the fulfillment CLI
type Config struct {
	Store    string `mapstructure:"store"`
	DSN      string `mapstructure:"dsn"`
	Scenario string `mapstructure:"scenario"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	LogLevel string `mapstructure:"log_level"`
	Verbose  bool   `mapstructure:"verbose"`
	// ConnectAttempts bounds the postgres connection retry loop
	ConnectAttempts int `mapstructure:"connect_attempts"`
}

// Load reads configFile (optional) and FULFILLMENT_* environment variables
// on top of the defaults
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("store", StoreMemory)
	v.SetDefault("dsn", "")
	v.SetDefault("scenario", "")
	v.SetDefault("format", FormatText)
	v.SetDefault("output", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("verbose", false)
	v.SetDefault("connect_attempts", 10)

	v.SetEnvPrefix("FULFILLMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values for consistency
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
		if c.Scenario == "" {
			return fmt.Errorf("memory store needs a scenario directory")
		}
	case StorePostgres:
		if c.DSN == "" {
			return fmt.Errorf("postgres store needs a dsn")
		}
		if c.ConnectAttempts < 1 {
			return fmt.Errorf("connect_attempts must be positive, got %d", c.ConnectAttempts)
		}
	default:
		return fmt.Errorf("invalid store %q (expected %s or %s)", c.Store, StoreMemory, StorePostgres)
	}

	switch c.Format {
	case FormatText, FormatJSON, FormatCSV:
	default:
		return fmt.Errorf("invalid format %q (expected text, json or csv)", c.Format)
	}
	return nil
}
