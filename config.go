package draftsync

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ottopen/draftsync/internal/app"
	"github.com/ottopen/draftsync/internal/domain"
)

// Config holds the configuration for a sync Manager.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// ServiceURL is the base URL of the remote document service.
	// Required unless a custom DocumentStore is injected.
	ServiceURL string

	// AuthKey is the API authentication key sent as a bearer token.
	AuthKey string

	// ClientID identifies this editor session or device to the service.
	ClientID string

	// StorePath is the path of the local SQLite draft store.
	// Defaults to ~/.draftsync/drafts.db.
	StorePath string

	// DebounceWindow is the inactivity delay before a save attempt.
	// Defaults to 3 seconds.
	DebounceWindow time.Duration

	// HTTPTimeout bounds every remote call. Defaults to 30 seconds.
	HTTPTimeout time.Duration

	// ReplayInterval is how often the background loop checks the replay
	// queue in addition to reconnect-triggered passes. Defaults to 30s.
	ReplayInterval time.Duration

	// ReplayBackoffInitial and ReplayBackoffMax bound the exponential
	// backoff between replay passes while items keep failing.
	ReplayBackoffInitial time.Duration
	ReplayBackoffMax     time.Duration

	// MaxItemRetries caps replay attempts per queue entry before the
	// content is escrowed as a conflict draft. Zero retries forever.
	MaxItemRetries int

	// Iface, when set, names a Linux network interface whose operstate
	// file drives the connectivity oracle (e.g. "eth0"). When empty the
	// application feeds connectivity via Manager.SetOnline.
	Iface string
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, set ServiceURL and AuthKey before calling New.
func DefaultConfig() Config {
	return Config{
		StorePath:            defaultStorePath(),
		DebounceWindow:       app.DefaultDebounceWindow,
		HTTPTimeout:          30 * time.Second,
		ReplayInterval:       30 * time.Second,
		ReplayBackoffInitial: app.DefaultBackoffInitial,
		ReplayBackoffMax:     app.DefaultBackoffMax,
		MaxItemRetries:       8,
		AuthKey:              os.Getenv("DRAFTSYNC_AUTH_KEY"),
	}
}

func defaultStorePath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".draftsync", "drafts.db")
	}
	return "drafts.db"
}

// SetDefaults fills zero-valued fields with their defaults.
func (c *Config) SetDefaults() {
	if c.StorePath == "" {
		c.StorePath = defaultStorePath()
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = app.DefaultDebounceWindow
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.ReplayInterval <= 0 {
		c.ReplayInterval = 30 * time.Second
	}
	if c.ReplayBackoffInitial <= 0 {
		c.ReplayBackoffInitial = app.DefaultBackoffInitial
	}
	if c.ReplayBackoffMax <= 0 {
		c.ReplayBackoffMax = app.DefaultBackoffMax
	}
}

// Validate checks the configuration for errors and normalizes derived
// values. Called by New after applying options.
func (c *Config) Validate() error {
	// Ensure no trailing slash
	if len(c.ServiceURL) > 0 && c.ServiceURL[len(c.ServiceURL)-1] == '/' {
		c.ServiceURL = c.ServiceURL[:len(c.ServiceURL)-1]
	}

	if c.DebounceWindow <= 0 {
		return fmt.Errorf("%w: debounce window must be positive", domain.ErrInvalidConfig)
	}
	if c.ReplayInterval <= 0 {
		return fmt.Errorf("%w: replay interval must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxItemRetries < 0 {
		return fmt.Errorf("%w: max item retries must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}
