// Package netstate implements the connectivity oracle.
//
// A Monitor holds the current online/offline flag and fans transition events
// out to subscribers. It is fed by whatever platform signal the embedding
// application has: call [Monitor.SetOnline] from that signal, or attach a
// [Watcher] to track a Linux network interface's operstate file.
//
// The monitor never probes the remote store. A false positive (reporting
// online while the store is unreachable) simply routes the save through the
// coordinator's ordinary failure path.
package netstate

import (
	"sync"

	"github.com/ottopen/draftsync/internal/ports"
)

// Monitor implements ports.Connectivity.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]subscriber
	logger ports.Logger
}

type subscriber struct {
	onOnline  func()
	onOffline func()
}

// NewMonitor creates a Monitor with the given initial status.
func NewMonitor(online bool, logger ports.Logger) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int]subscriber),
		logger: logger,
	}
}

// Online reports the current connectivity status.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline updates the status and notifies subscribers on a transition.
// Setting the same status twice is a no-op. Callbacks run synchronously on
// the caller's goroutine, outside the monitor lock.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", ports.Bool("online", online))

	for _, s := range subs {
		if online && s.onOnline != nil {
			s.onOnline()
		}
		if !online && s.onOffline != nil {
			s.onOffline()
		}
	}
}

// Subscribe registers transition callbacks; either may be nil.
// The returned function removes the subscription and is safe to call twice.
func (m *Monitor) Subscribe(onOnline, onOffline func()) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = subscriber{onOnline: onOnline, onOffline: onOffline}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
