package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (DRAFTSYNC_*).
// It respects flags that have been explicitly set (changed map).
// Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", os.Getenv("DRAFTSYNC_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("DRAFTSYNC_AUTH_KEY"), &cfg.AuthKey)
	s.setString("client-id", os.Getenv("DRAFTSYNC_CLIENT_ID"), &cfg.ClientID)
	s.setString("store", os.Getenv("DRAFTSYNC_STORE_PATH"), &cfg.StorePath)
	s.setString("iface", os.Getenv("DRAFTSYNC_IFACE"), &cfg.Iface)

	if err := s.setDuration("timeout", os.Getenv("DRAFTSYNC_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("replay-interval", os.Getenv("DRAFTSYNC_REPLAY_INTERVAL"), &cfg.ReplayInterval); err != nil {
		return err
	}
	if err := s.setIntFromString("max-item-retries", os.Getenv("DRAFTSYNC_MAX_ITEM_RETRIES"), &cfg.MaxItemRetries); err != nil {
		return err
	}

	s.setBoolFromString("once", os.Getenv("DRAFTSYNC_ONCE"), &cfg.Once)

	return nil
}
