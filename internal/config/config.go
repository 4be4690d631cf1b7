// Package config loads application settings from config files, environment
// variables and defaults, in that order of increasing precedence for the
// environment and decreasing for explicit flags handled by the commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the application reads at startup
type Config struct {
	// Server settings
	Port       int    `mapstructure:"port"`
	DBPath     string `mapstructure:"db_path"`
	UploadsDir string `mapstructure:"uploads_dir"`
	LogFile    string `mapstructure:"log_file"`

	// Client settings
	ServerURL       string        `mapstructure:"server_url"`
	CacheDir        string        `mapstructure:"cache_dir"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// Feed settings
	FeedPollInterval      time.Duration `mapstructure:"feed_poll_interval"`
	FeedHeartbeatInterval time.Duration `mapstructure:"feed_heartbeat_interval"`
}

// dataDir returns the base directory for application state
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klusjes"
	}
	return filepath.Join(home, ".klusjes")
}

// setDefaults registers every known key with its default value
func setDefaults(v *viper.Viper) {
	base := dataDir()
	v.SetDefault("port", 8008)
	v.SetDefault("db_path", filepath.Join(base, "klusjes.db"))
	v.SetDefault("uploads_dir", filepath.Join(base, "uploads"))
	v.SetDefault("log_file", "")
	v.SetDefault("server_url", "http://localhost:8008")
	v.SetDefault("cache_dir", filepath.Join(base, "cache"))
	v.SetDefault("refresh_interval", 3*time.Second)
	v.SetDefault("feed_poll_interval", time.Second)
	v.SetDefault("feed_heartbeat_interval", 30*time.Second)
}

// Load reads configuration from the given file (optional), a klusjes.yaml
// in the data directory or working directory, and KLUSJES_* environment
// variables.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KLUSJES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("klusjes")
		v.SetConfigType("yaml")
		v.AddConfigPath(dataDir())
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
