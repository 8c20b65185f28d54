package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ServiceURL     string `toml:"service_url"`
	AuthKey        string `toml:"auth_key"`
	ClientID       string `toml:"client_id"`
	StorePath      string `toml:"store_path"`
	HTTPTimeout    string `toml:"http_timeout"`
	ReplayInterval string `toml:"replay_interval"`
	MaxItemRetries int    `toml:"max_item_retries"`
	Iface          string `toml:"iface"`
	Once           *bool  `toml:"once"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.draftsync/config.toml if the home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".draftsync", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("client-id", fc.ClientID, &cfg.ClientID)
	s.setString("store", fc.StorePath, &cfg.StorePath)
	s.setString("iface", fc.Iface, &cfg.Iface)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("replay-interval", fc.ReplayInterval, &cfg.ReplayInterval); err != nil {
		return err
	}

	if fc.MaxItemRetries > 0 && !changed["max-item-retries"] {
		cfg.MaxItemRetries = fc.MaxItemRetries
	}
	if fc.Once != nil && !changed["once"] {
		cfg.Once = *fc.Once
	}

	return nil
}
