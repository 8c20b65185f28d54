package draftsync

import "github.com/ottopen/draftsync/internal/domain"

// Errors returned by the public API. Check with errors.Is.
var (
	ErrAlreadyRunning   = domain.ErrAlreadyRunning
	ErrNotRunning       = domain.ErrNotRunning
	ErrShutdownTimeout  = domain.ErrShutdownTimeout
	ErrInvalidConfig    = domain.ErrInvalidConfig
	ErrNotTracked       = domain.ErrNotTracked
	ErrDocumentVanished = domain.ErrDocumentVanished
	ErrOffline          = domain.ErrOffline
)
