// Package draftsync provides a durable auto-save pipeline for document
// editors: debounced saves, cooperative cancellation of superseded attempts,
// offline fallback to a local draft store, and queue replay on reconnect.
//
// Example usage:
//
//	cfg := draftsync.DefaultConfig()
//	cfg.ServiceURL = "https://api.example.com"
//	cfg.AuthKey = "your-api-key"
//	m, err := draftsync.New(cfg, draftsync.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Stop()
//
//	m.InitDocument("scene-1", "manuscript-9", "It was a dark night.", 0)
//	m.UpdateContent("scene-1", "It was a dark and stormy night.")
package draftsync

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	httpAdapter "github.com/ottopen/draftsync/internal/adapters/http"
	logAdapter "github.com/ottopen/draftsync/internal/adapters/log"
	"github.com/ottopen/draftsync/internal/adapters/netstate"
	"github.com/ottopen/draftsync/internal/adapters/sqlite"
	"github.com/ottopen/draftsync/internal/app"
	"github.com/ottopen/draftsync/internal/domain"
	"github.com/ottopen/draftsync/internal/ports"
)

// Manager owns the save pipeline for one editor session: the per-document
// save coordinator, the local draft store, the connectivity oracle and the
// background replay loop. Construct one per session with New and pass it to
// whatever owns the editor; it is not a process-wide singleton.
type Manager struct {
	config Config
	opts   options

	lifecycle   *app.Lifecycle
	coordinator *app.Coordinator
	replayer    *app.Replayer

	remote ports.DocumentStore
	local  ports.DraftStore
	conn   ports.Connectivity
	logger ports.Logger

	// monitor is set when the Manager built its own connectivity monitor;
	// SetOnline feeds it.
	monitor *netstate.Monitor
	watcher *netstate.Watcher

	// ownsLocal is true when the Manager created the draft store and must
	// close it on Stop.
	ownsLocal bool

	emitter *eventEmitter

	// kick wakes the replay loop ahead of its ticker, e.g. on reconnect.
	kick chan struct{}

	mu          sync.Mutex
	cancel      context.CancelFunc
	unsubscribe func()
}

// New creates a Manager with the given configuration.
// The Manager is created stopped; call Start to begin background replay.
func New(cfg Config, opts ...Option) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	o := options{httpClient: httpClient}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}

	emitter := &eventEmitter{handler: o.eventHandler}

	remote := o.remote
	if remote == nil {
		if cfg.ServiceURL == "" {
			return nil, errors.New("draftsync: service URL is required without a custom document store")
		}
		remote = httpAdapter.NewDocumentStore(o.httpClient, httpAdapter.Metadata{
			ServiceURL: cfg.ServiceURL,
			AuthKey:    cfg.AuthKey,
			ClientID:   cfg.ClientID,
			Hostname:   hostname(),
		}, logger)
	}

	local := o.local
	ownsLocal := false
	if local == nil {
		local = sqlite.NewStore(cfg.StorePath)
		ownsLocal = true
	}

	conn := o.conn
	var monitor *netstate.Monitor
	if conn == nil {
		// Assume online until the platform signal says otherwise; a wrong
		// guess routes through the ordinary failure path.
		monitor = netstate.NewMonitor(true, logger)
		conn = monitor
	}

	coordinator := app.NewCoordinator(cfg.DebounceWindow, remote, local, conn, logger, o.metric, emitter)
	replayer := app.NewReplayer(remote, local, conn, logger, cfg.MaxItemRetries)

	m := &Manager{
		config:      cfg,
		opts:        o,
		lifecycle:   app.NewLifecycle(logger, emitter),
		coordinator: coordinator,
		replayer:    replayer,
		remote:      remote,
		local:       local,
		conn:        conn,
		logger:      logger,
		monitor:     monitor,
		ownsLocal:   ownsLocal,
		emitter:     emitter,
		kick:        make(chan struct{}, 1),
	}
	if monitor != nil && cfg.Iface != "" {
		m.watcher = netstate.NewWatcher(cfg.Iface, monitor, logger)
	}
	return m, nil
}

// Start launches the background replay loop and, when configured, the
// operstate watcher. Returns ErrAlreadyRunning if the Manager is running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := m.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.lifecycle.SetCancel(cancel)

	if m.watcher != nil {
		if err := m.watcher.Start(runCtx); err != nil {
			m.logger.Warn("operstate watcher unavailable",
				ports.String("iface", m.config.Iface),
				ports.Err(err),
			)
			m.watcher = nil
		}
	}

	// Reconnects wake the replay loop immediately.
	m.unsubscribe = m.conn.Subscribe(func() {
		select {
		case m.kick <- struct{}{}:
		default:
		}
	}, nil)

	m.lifecycle.AddWorker()
	go m.replayLoop(runCtx)

	return m.lifecycle.TransitionTo(app.StateRunning, "replay loop started")
}

// Stop shuts the Manager down gracefully: stops watchers, cleans up every
// tracked document (cancelling timers and in-flight attempts) and waits for
// the replay loop. Returns ErrNotRunning if the Manager is not running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := m.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		return err
	}

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.watcher != nil {
		m.watcher.Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}

	m.coordinator.Shutdown()

	err := m.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	if m.ownsLocal {
		if cerr := m.local.Close(); cerr != nil {
			m.logger.Warn("failed to close draft store", ports.Err(cerr))
		}
	}

	if err != nil {
		_ = m.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
		return err
	}
	return m.lifecycle.TransitionTo(app.StateStopped, "shutdown complete")
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.lifecycle.State()
}

// SetOnline feeds the connectivity oracle. It is a no-op when a custom
// Connectivity implementation was injected.
func (m *Manager) SetOnline(online bool) {
	if m.monitor != nil {
		m.monitor.SetOnline(online)
	}
}

// Online reports the connectivity oracle's current status.
func (m *Manager) Online() bool {
	return m.conn.Online()
}

// InitDocument begins tracking a document in the save coordinator.
func (m *Manager) InitDocument(documentID, parentID, initialContent string, version int64) {
	m.coordinator.InitDocument(documentID, parentID, initialContent, version)
}

// UpdateContent records an edit and resets the debounce window.
func (m *Manager) UpdateContent(documentID, content string) {
	m.coordinator.UpdateContent(documentID, content)
}

// ForceSave saves immediately, bypassing the debounce wait. Returns true
// when the content ended up durable (remote or local).
func (m *Manager) ForceSave(documentID string) bool {
	return m.coordinator.ForceSave(documentID)
}

// HasUnsavedChanges reports whether content diverged from the last confirmed
// remote save.
func (m *Manager) HasUnsavedChanges(documentID string) bool {
	return m.coordinator.HasUnsavedChanges(documentID)
}

// LastSavedTime returns the time of the last confirmed save attempt, if any.
func (m *Manager) LastSavedTime(documentID string) (time.Time, bool) {
	return m.coordinator.LastSavedTime(documentID)
}

// CloseDocument stops tracking a document, cancelling its timer and any
// in-flight attempt. Must be called when the editor closes the document.
func (m *Manager) CloseDocument(documentID string) {
	m.coordinator.Cleanup(documentID)
}

// SyncNow runs one replay pass immediately on the caller's goroutine.
// Returns the number of synced and failed queue entries; ErrOffline when the
// oracle reports offline.
func (m *Manager) SyncNow(ctx context.Context) (synced, failed int, err error) {
	return m.replayer.Sync(ctx, m.replayHooks())
}

// DraftsForParent lists locally persisted drafts under one parent, most
// recently modified first. Intended for "recent drafts" and conflict
// resolution UIs.
func (m *Manager) DraftsForParent(ctx context.Context, parentID string) ([]Draft, error) {
	records, err := m.local.DraftsForParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	drafts := make([]Draft, len(records))
	for i, r := range records {
		drafts[i] = Draft{
			ID:           r.ID,
			DocumentID:   r.DocumentID,
			ParentID:     r.ParentID,
			Content:      r.Content,
			LastModified: r.LastModified,
			Conflict:     r.Conflict,
		}
	}
	return drafts, nil
}

// Draft is the public view of a locally persisted draft.
type Draft struct {
	ID           string
	DocumentID   string
	ParentID     string
	Content      string
	LastModified time.Time
	Conflict     bool
}

func (m *Manager) replayHooks() app.ReplayHooks {
	return app.ReplayHooks{
		OnSynced: m.emitter.onReplayed,
		OnFailed: m.emitter.onReplayFailed,
		// A document with an active edit pending supersedes its queued
		// entry; skipping it preserves per-document ordering.
		Skip: m.coordinator.HasUnsavedChanges,
	}
}

// replayLoop drains the queue on reconnect and on a periodic tick, pacing
// repeated passes with exponential backoff while failures remain.
func (m *Manager) replayLoop(ctx context.Context) {
	defer m.lifecycle.WorkerDone()

	ticker := time.NewTicker(m.config.ReplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.kick:
		case <-ticker.C:
		}
		m.drain(ctx)
	}
}

// drain runs replay passes until the queue stops failing or the context or
// connectivity ends the attempt.
func (m *Manager) drain(ctx context.Context) {
	backoff := app.NewBackoff(m.config.ReplayBackoffInitial, m.config.ReplayBackoffMax)

	for {
		synced, failed, err := m.replayer.Sync(ctx, m.replayHooks())
		if err != nil {
			if !errors.Is(err, domain.ErrOffline) && !errors.Is(err, context.Canceled) {
				m.logger.Error("replay pass failed", ports.Err(err))
			}
			return
		}
		if failed == 0 {
			if synced > 0 {
				m.logger.Info("replay queue drained", ports.Int("synced", synced))
			}
			return
		}
		if err := backoff.Wait(ctx); err != nil {
			return
		}
	}
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
