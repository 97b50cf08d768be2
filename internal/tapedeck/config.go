// Package tapedeck holds the application-level plumbing shared by every
// subcommand: configuration and logging.
package tapedeck

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the top-level configuration for tapedeck.
type Config struct {
	Catalog   CatalogConfig   `toml:"catalog"`
	Player    PlayerConfig    `toml:"player"`
	Broadcast BroadcastConfig `toml:"broadcast"`
	Log       LogConfig       `toml:"log"`
}

// CatalogConfig selects the playlist source.
type CatalogConfig struct {
	ID        string `toml:"id"`
	BaseURL   string `toml:"base_url"`
	Format    string `toml:"format"`
	URLStyle  string `toml:"url_style"`
	FeedURL   string `toml:"feed_url"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// PlayerConfig configures local playback.
type PlayerConfig struct {
	StatePath string `toml:"state_path"`
	Driver    string `toml:"driver"`
	Pipeline  string `toml:"pipeline"`
	Device    string `toml:"device"`
}

// BroadcastConfig configures the now-playing MQTT surface.
type BroadcastConfig struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Embedded bool   `toml:"embedded"`
	Listen   string `toml:"listen"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// LoadConfig reads the TOML config at path, then applies TAPEDECK_* env
// overrides (a local .env file is honored too). A missing file yields the
// defaults rather than an error.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		Catalog: CatalogConfig{Format: "VBR MP3"},
		Player:  PlayerConfig{Driver: "beep"},
		Log:     LogConfig{Level: "info"},
	}

	if path != "" {
		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			return Config{}, errors.New("config path is a directory")
		case err == nil:
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, err
			}
		case !os.IsNotExist(err):
			return Config{}, err
		}
	}

	_ = godotenv.Load()
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TAPEDECK_CATALOG_ID"); v != "" {
		cfg.Catalog.ID = v
	}
	if v := os.Getenv("TAPEDECK_CATALOG_BASE_URL"); v != "" {
		cfg.Catalog.BaseURL = v
	}
	if v := os.Getenv("TAPEDECK_FEED_URL"); v != "" {
		cfg.Catalog.FeedURL = v
	}
	if v := os.Getenv("TAPEDECK_STATE_PATH"); v != "" {
		cfg.Player.StatePath = v
	}
	if v := os.Getenv("TAPEDECK_DRIVER"); v != "" {
		cfg.Player.Driver = v
	}
	if v := os.Getenv("TAPEDECK_BROKER"); v != "" {
		cfg.Broadcast.Broker = v
		cfg.Broadcast.Enabled = true
	}
	if v := os.Getenv("TAPEDECK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tapedeck", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tapedeck", "config.toml"), nil
}

// DefaultStatePath returns where playback state lives when the config does
// not say otherwise.
func DefaultStatePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tapedeck"), nil
}
