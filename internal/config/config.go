// Package config loads the ntaio configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (NTAIO_*, e.g. NTAIO_ENGINE_BACKEND=uring)
//  2. Configuration file (YAML or TOML)
//  3. Defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "NTAIO"

type Config struct {
	Logging	LoggingConfig	`mapstructure:"logging" yaml:"logging"`
	Engine	EngineConfig	`mapstructure:"engine" yaml:"engine"`
	Metrics	MetricsConfig	`mapstructure:"metrics" yaml:"metrics"`
}

type LoggingConfig struct {
	// DEBUG, INFO, WARN, ERROR; normalized to uppercase
	Level	string	`mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format	string	`mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	// stdout, stderr or a file path
	Output	string	`mapstructure:"output" yaml:"output" validate:"required"`
}

// EngineConfig selects the host backend. Only the section named by Backend is
// decoded, see CreateBackend.
type EngineConfig struct {
	Backend		string			`mapstructure:"backend" yaml:"backend" validate:"required,oneof=threadpool uring"`
	Inline		bool			`mapstructure:"inline" yaml:"inline"`
	Threadpool	map[string]any	`mapstructure:"threadpool" yaml:"threadpool"`
	Uring		map[string]any	`mapstructure:"uring" yaml:"uring"`
}

type MetricsConfig struct {
	Enabled	bool	`mapstructure:"enabled" yaml:"enabled"`
	Addr	string	`mapstructure:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

// Load reads configPath (or the default location when empty), applies
// defaults and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil { return nil, err }

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// zero values ApplyDefaults can't tell from unset
	v.SetDefault("engine.inline", true)
	// AutomaticEnv only sees keys viper already knows
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.output", "")
	v.SetDefault("engine.backend", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok { return nil }
		// an explicit path that doesn't exist yet
		if errors.Is(err, fs.ErrNotExist) { return nil }
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// ConfigDir is $XDG_CONFIG_HOME/ntaio, ~/.config/ntaio, or "." as a last resort.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ntaio")
	}
	home, err := os.UserHomeDir()
	if err != nil { return "." }
	return filepath.Join(home, ".config", "ntaio")
}

func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
