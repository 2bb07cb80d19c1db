// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type Config struct {
	ProgramID      string        `mapstructure:"program_id"`
	FeeBps         uint16        `mapstructure:"fee_bps"`
	ProtocolFeeBps uint16        `mapstructure:"protocol_fee_bps"`
	LPDecimals     uint8         `mapstructure:"lp_decimals"`
	Storage        StorageConfig `mapstructure:"storage"`
	Log            LogConfig     `mapstructure:"log"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
	Events         EventsConfig  `mapstructure:"events"`
}

type StorageConfig struct {
	Driver         string `mapstructure:"driver"`
	PostgresURL    string `mapstructure:"postgres_url"`
	ConnectRetries uint   `mapstructure:"connect_retries"`
}

type LogConfig struct {
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
	Pretty      bool   `mapstructure:"pretty"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	// DefaultProgramID is the address the pool program is deployed under unless overridden.
	DefaultProgramID      = "F6SEFWxhBryxMrCwdD9jzaL2MZe6dtZBqzEwCRFsXodf"
	DefaultFeeBps         = 30
	DefaultProtocolFeeBps = 2000
	DefaultLPDecimals     = 6
	DefaultRetries        = 5
	DefaultBufferSize     = 1000
	DefaultLogFile        = "amm.log"

	maxBasisPoints = 10_000
	envPrefix      = "SOLANA_AMM"
)

// LoadConfig reads path (JSON or YAML) when given, then applies SOLANA_AMM_*
// environment overrides, e.g. SOLANA_AMM_STORAGE_DRIVER.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"program_id":              DefaultProgramID,
		"fee_bps":                 DefaultFeeBps,
		"protocol_fee_bps":        DefaultProtocolFeeBps,
		"lp_decimals":             DefaultLPDecimals,
		"storage.driver":          DriverMemory,
		"storage.postgres_url":    "",
		"storage.connect_retries": DefaultRetries,
		"log.file":                DefaultLogFile,
		"log.development":         false,
		"log.pretty":              false,
		"metrics.enabled":         true,
		"events.buffer_size":      DefaultBufferSize,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

// Program returns the parsed program id.
func (c *Config) Program() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(c.ProgramID)
}

func validateConfig(cfg *Config) error {
	if _, err := cfg.Program(); err != nil {
		return errors.New("invalid program_id")
	}
	if cfg.FeeBps > maxBasisPoints {
		return errors.New("fee_bps must be at most 10000")
	}
	if cfg.ProtocolFeeBps > maxBasisPoints {
		return errors.New("protocol_fee_bps must be at most 10000")
	}
	if cfg.Events.BufferSize <= 0 {
		return errors.New("invalid events.buffer_size")
	}

	switch cfg.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for the postgres driver")
		}
		if err := validatePostgresURL(cfg.Storage.PostgresURL); err != nil {
			return fmt.Errorf("storage.postgres_url: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
	return nil
}

func validatePostgresURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return errors.New("must use the postgres scheme")
	}
	return nil
}
