package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the application configuration, read from a YAML file with
// TICKLIST_* environment overrides.
type Config struct {
	ListenPort string `mapstructure:"listen_port"`
	DBPath     string `mapstructure:"db_path"`
	LogLevel   string `mapstructure:"log_level"`

	// AdminEmail grants admin capability to the matching account.
	AdminEmail string `mapstructure:"admin_email"`

	// TokenSecret signs bearer tokens. Required for the HTTP surface.
	TokenSecret string `mapstructure:"token_secret"`

	// ResetMarkerPath holds the per-device "last reset date" marker.
	ResetMarkerPath string `mapstructure:"reset_marker_path"`
}

// DefaultConfigPath returns ~/.config/ticklist/config.yaml, falling back to
// the working directory when the home directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "ticklist", "config.yaml")
}

func defaultMarkerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "last_reset")
	}
	return filepath.Join(home, ".config", "ticklist", "last_reset")
}

// Load reads the configuration at path. A missing file is not an error: the
// defaults plus environment overrides apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("listen_port", "8080")
	v.SetDefault("db_path", "ticklist.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("reset_marker_path", defaultMarkerPath())

	v.SetEnvPrefix("TICKLIST")
	v.AutomaticEnv()
	for _, key := range []string{"listen_port", "db_path", "log_level", "admin_email", "token_secret", "reset_marker_path"} {
		v.MustBindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
