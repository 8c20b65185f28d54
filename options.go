package draftsync

import (
	"github.com/ottopen/draftsync/internal/domain"
	"github.com/ottopen/draftsync/internal/ports"
)

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Logger is the interface for structured logging.
type Logger = ports.Logger

// LogField represents a structured log field.
type LogField = ports.Field

// DocumentStore is the remote document store contract.
type DocumentStore = ports.DocumentStore

// DraftStore is the local durable store contract.
type DraftStore = ports.DraftStore

// Connectivity is the connectivity oracle contract.
type Connectivity = ports.Connectivity

// MetricFunc derives an integer metric (word count) from content.
type MetricFunc = domain.MetricFunc

// Option configures optional behavior of a Manager.
type Option func(*options)

// options holds the optional configuration for a Manager.
type options struct {
	httpClient   ports.HTTPClient
	logger       ports.Logger
	remote       ports.DocumentStore
	local        ports.DraftStore
	conn         ports.Connectivity
	metric       domain.MetricFunc
	eventHandler EventHandler
}

// WithHTTPClient sets a custom HTTP client for remote-store communication.
// If not provided, a default client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDocumentStore replaces the default HTTP document store.
// When set, Config.ServiceURL and Config.AuthKey are unused.
func WithDocumentStore(store DocumentStore) Option {
	return func(o *options) {
		o.remote = store
	}
}

// WithDraftStore replaces the default SQLite draft store.
// When set, Config.StorePath is unused and the Manager does not close the
// store on Stop; the caller owns its lifetime.
func WithDraftStore(store DraftStore) Option {
	return func(o *options) {
		o.local = store
	}
}

// WithConnectivity replaces the default connectivity monitor.
// When set, Config.Iface and Manager.SetOnline are unused.
func WithConnectivity(conn Connectivity) Option {
	return func(o *options) {
		o.conn = conn
	}
}

// WithMetricFunc replaces the default word-count metric attached to every
// remote update.
func WithMetricFunc(metric MetricFunc) Option {
	return func(o *options) {
		o.metric = metric
	}
}

// WithEventHandler sets a handler for save and replay events.
// Events are called synchronously from the goroutine that produced them.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}
