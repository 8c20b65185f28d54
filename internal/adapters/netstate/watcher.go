package netstate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ottopen/draftsync/internal/ports"
)

// debounceDelay absorbs flapping while an interface renegotiates.
const debounceDelay = 250 * time.Millisecond

// Watcher feeds a Monitor from a Linux network interface's operstate file
// (/sys/class/net/<iface>/operstate). The kernel rewrites this file on every
// carrier transition, which makes it the platform-native connectivity signal
// on Linux hosts.
type Watcher struct {
	iface   string
	root    string
	monitor *Monitor
	logger  ports.Logger

	mu       sync.Mutex
	debounce *time.Timer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWatcher creates a Watcher for the given interface name (e.g. "eth0").
func NewWatcher(iface string, monitor *Monitor, logger ports.Logger) *Watcher {
	return &Watcher{
		iface:   iface,
		root:    "/sys/class/net",
		monitor: monitor,
		logger:  logger,
	}
}

func (w *Watcher) operstatePath() string {
	return filepath.Join(w.root, w.iface, "operstate")
}

// Start reads the current operstate and begins watching for transitions.
// If the operstate file cannot be watched the monitor keeps its current
// status and the watcher is inert.
func (w *Watcher) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.apply()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return err
	}
	if err := watcher.Add(filepath.Dir(w.operstatePath())); err != nil {
		watcher.Close()
		cancel()
		return err
	}

	w.wg.Add(1)
	go w.watchLoop(watchCtx, watcher)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != "operstate" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceApply()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("operstate watcher error", ports.Err(err))
		}
	}
}

func (w *Watcher) debounceApply() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, w.apply)
}

// apply reads operstate and pushes the result into the monitor.
func (w *Watcher) apply() {
	data, err := os.ReadFile(w.operstatePath())
	if err != nil {
		w.logger.Warn("failed to read operstate",
			ports.String("iface", w.iface),
			ports.Err(err),
		)
		return
	}
	state := strings.TrimSpace(string(data))
	// "unknown" covers interfaces that do not report carrier (loopback,
	// some virtual devices); treat it as up rather than forcing offline.
	w.monitor.SetOnline(state == "up" || state == "unknown")
}
