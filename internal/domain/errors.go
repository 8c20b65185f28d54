package domain

import "errors"

// Domain errors represent error conditions in the draftsync domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running manager.
	ErrAlreadyRunning = errors.New("draftsync: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped manager.
	ErrNotRunning = errors.New("draftsync: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("draftsync: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("draftsync: invalid configuration")

	// ErrNotTracked is returned when an operation references a document that
	// was never registered with InitDocument (or was already cleaned up).
	ErrNotTracked = errors.New("draftsync: document not tracked")

	// ErrDocumentVanished is returned when the remote store reports that a
	// document no longer exists. The local content is preserved as a
	// conflict draft rather than written over the missing document.
	ErrDocumentVanished = errors.New("draftsync: remote document vanished")

	// ErrSuperseded marks a save attempt that was preempted by a newer one.
	// It is neither a success nor a failure; the newer attempt owns the outcome.
	ErrSuperseded = errors.New("draftsync: save attempt superseded")

	// ErrOffline is returned by operations that require connectivity when
	// the connectivity oracle reports offline.
	ErrOffline = errors.New("draftsync: offline")
)
