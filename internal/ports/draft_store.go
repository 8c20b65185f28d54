package ports

import (
	"context"

	"github.com/ottopen/draftsync/internal/domain"
)

// DraftStore is the local durable store for draft snapshots and the offline
// replay queue. It must remain usable while the remote store is unreachable.
//
// Initialization is lazy and idempotent: the first operation on an
// uninitialized store transparently creates the schema. Operations are
// independently atomic at the single-record level; no cross-record
// transactions are required.
type DraftStore interface {
	// SaveDraft upserts a draft by its ID.
	SaveDraft(ctx context.Context, record domain.DraftRecord) error

	// Draft returns the draft with the given ID, or (nil, nil) if absent.
	Draft(ctx context.Context, id string) (*domain.DraftRecord, error)

	// DraftsForParent returns all drafts under one parent (e.g. all scenes
	// of a manuscript), most recently modified first.
	DraftsForParent(ctx context.Context, parentID string) ([]domain.DraftRecord, error)

	// DeleteDraft removes a draft by ID. Deleting an absent draft is not an error.
	DeleteDraft(ctx context.Context, id string) error

	// EnqueueSave records a save for later replay. Entries coalesce to one
	// per document: a second enqueue for the same document replaces the
	// queued content while keeping the original enqueue position.
	EnqueueSave(ctx context.Context, save domain.QueuedSave) error

	// QueuedSaves lists all queued saves, oldest first.
	QueuedSaves(ctx context.Context) ([]domain.QueuedSave, error)

	// RemoveQueuedSave removes a queue entry after a confirmed replay.
	RemoveQueuedSave(ctx context.Context, id string) error

	// RemoveQueuedForDocument removes the queued save targeting a document,
	// if any. Used after a newer remote write confirms, so a stale entry
	// cannot replay older content over it.
	RemoveQueuedForDocument(ctx context.Context, documentID string) error

	// BumpRetry increments the retry counter of a queue entry.
	BumpRetry(ctx context.Context, id string) error

	// ClearDrafts removes all drafts.
	ClearDrafts(ctx context.Context) error

	// ClearQueue removes all queued saves.
	ClearQueue(ctx context.Context) error

	// Close releases the underlying storage handle.
	Close() error
}
