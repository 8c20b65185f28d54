// Package cliconfig holds the configuration surface of the draftsync CLI:
// defaults, validation, and the flag > environment > file precedence rules.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds CLI configuration for the draftsync agent.
type Config struct {
	ServiceURL string
	AuthKey    string
	ClientID   string

	StorePath string

	HTTPTimeout    time.Duration
	ReplayInterval time.Duration
	MaxItemRetries int

	Iface string
	Once  bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StorePath:      defaultStorePath(),
		HTTPTimeout:    30 * time.Second,
		ReplayInterval: 30 * time.Second,
		MaxItemRetries: 8,
		AuthKey:        os.Getenv("DRAFTSYNC_AUTH_KEY"),
	}
}

func defaultStorePath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".draftsync", "drafts.db")
	}
	return "drafts.db"
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("service-url is required")
	}

	// Ensure no trailing slash
	if c.ServiceURL[len(c.ServiceURL)-1] == '/' {
		c.ServiceURL = c.ServiceURL[:len(c.ServiceURL)-1]
	}

	if c.StorePath == "" {
		c.StorePath = defaultStorePath()
	}
	if c.ClientID == "" {
		if h, err := os.Hostname(); err == nil {
			c.ClientID = h
		} else {
			c.ClientID = "draftsync-cli"
		}
	}

	if c.ReplayInterval <= 0 {
		return fmt.Errorf("replay interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// FileExists reports whether the given path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
