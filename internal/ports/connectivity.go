package ports

// Connectivity is the single source of truth for "can we currently reach the
// remote store". It is a thin wrapper over a platform connectivity signal
// and performs no active reachability probing; false positives are expected
// and handled by the Save Coordinator's ordinary failure path.
type Connectivity interface {
	// Online reports the current connectivity status.
	Online() bool

	// Subscribe registers transition callbacks. Either callback may be nil.
	// The returned function removes the subscription.
	Subscribe(onOnline, onOffline func()) (unsubscribe func())
}
