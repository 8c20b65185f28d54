package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DraftRecord is a locally persisted snapshot of content that has not been
// confirmed by the remote store. Records survive page reloads, process
// restarts and offline periods.
type DraftRecord struct {
	// ID is the document identifier, or a conflict-variant identifier
	// produced by ConflictDraftID when the remote document vanished.
	ID string

	// DocumentID is the identifier of the document this draft belongs to.
	// Equal to ID for ordinary drafts; retained on conflict drafts so they
	// can still be located after the ID gains a conflict suffix.
	DocumentID string

	// ParentID is the grouping key for "all drafts under one manuscript"
	// style queries.
	ParentID string

	// Content is the snapshot of unsaved content.
	Content string

	// LastModified is the local write timestamp.
	LastModified time.Time

	// OfflineDraft distinguishes local-only drafts from cached server copies.
	OfflineDraft bool

	// Conflict marks an escrow draft kept for manual resolution.
	Conflict bool
}

// ConflictDraftID derives a conflict-scoped identifier for content that could
// not be reconciled with the remote store. The suffix keeps repeated
// conflicts for the same document from overwriting each other.
func ConflictDraftID(documentID string) string {
	return fmt.Sprintf("%s.conflict.%s", documentID, uuid.NewString()[:8])
}
