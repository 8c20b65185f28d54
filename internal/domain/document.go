package domain

import "time"

// Document is a remote document as reported by the Remote Document Store.
// A nil *Document from the store means the document no longer exists, which
// is distinct from a transport failure.
type Document struct {
	// ID is the opaque document identifier, stable for the document's lifetime.
	ID string

	// ParentID groups documents under their containing work
	// (e.g. scenes under a manuscript, elements under a script).
	ParentID string

	// Content is the current remote content.
	Content string

	// WordCount is the derived metric attached to each remote update.
	WordCount int

	// Version increases by one for every confirmed remote write.
	Version int64

	// UpdatedAt is the remote store's last-modified timestamp.
	UpdatedAt time.Time
}
