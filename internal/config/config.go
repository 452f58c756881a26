// Package config manages the collabsync server configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const DatabaseFile = "collabsync.db"

// Config represents the server configuration.
type Config struct {
	Listen       string   `toml:"listen"`
	DataDir      string   `toml:"data_dir"`
	LogLevel     string   `toml:"log_level"`
	LogFormat    string   `toml:"log_format"`
	TLSCert      string   `toml:"tls_cert"`
	TLSKey       string   `toml:"tls_key"`
	AdminToken   string   `toml:"admin_token"`
	HistoryLimit int      `toml:"history_limit"`
	MemoryStore  bool     `toml:"memory_store"`
	WebhookURLs  []string `toml:"webhook_urls"`
}

// Default returns the configuration used when no file or flags override it.
func Default() *Config {
	return &Config{
		Listen:       "127.0.0.1:8730",
		DataDir:      defaultDataDir(),
		LogLevel:     "info",
		LogFormat:    "json",
		HistoryLimit: 100,
	}
}

// Load reads a TOML config file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.HistoryLimit < 0 {
		return nil, fmt.Errorf("history_limit must not be negative")
	}
	return cfg, nil
}

// Save writes the configuration to disk.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DatabasePath returns the path to the sqlite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseFile)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/collabsync"
	}
	return filepath.Join(home, ".collabsync")
}
