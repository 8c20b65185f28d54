package app

import (
	"context"
	"errors"
	"time"

	"github.com/ottopen/draftsync/internal/domain"
	"github.com/ottopen/draftsync/internal/ports"
)

// ReplayHooks carries optional per-item callbacks for a sync pass.
// Any field may be nil.
type ReplayHooks struct {
	// OnSynced is invoked after a queue entry was confirmed remotely and
	// removed from the queue.
	OnSynced func(documentID string)

	// OnFailed is invoked when replaying a queue entry failed. The entry
	// stays in the queue unless the failure is terminal (vanished document
	// or retry cap reached), in which case the content is escrowed as a
	// conflict draft first.
	OnFailed func(documentID string, err error)

	// Skip excludes a document from this pass, e.g. because it has an
	// active editing session whose next save supersedes the queued entry.
	Skip func(documentID string) bool
}

// Replayer drains the local replay queue against the remote store once
// connectivity is restored. Items are processed one at a time; a failure on
// one item never aborts the rest of the pass.
type Replayer struct {
	remote ports.DocumentStore
	local  ports.DraftStore
	conn   ports.Connectivity
	logger ports.Logger

	// maxItemRetries caps replay attempts per entry; zero means unbounded.
	// Entries over the cap are escrowed as conflict drafts and dropped from
	// the queue so one poisoned document cannot pin the queue forever.
	maxItemRetries int
}

// NewReplayer creates a Replayer. maxItemRetries <= 0 disables the cap.
func NewReplayer(remote ports.DocumentStore, local ports.DraftStore, conn ports.Connectivity, logger ports.Logger, maxItemRetries int) *Replayer {
	return &Replayer{
		remote:         remote,
		local:          local,
		conn:           conn,
		logger:         logger,
		maxItemRetries: maxItemRetries,
	}
}

// Sync replays all queued saves, oldest first. Returns the number of synced
// and failed items. When offline it does nothing and returns
// domain.ErrOffline; per-item failures are reported through hooks and the
// counts, not through the error return.
func (r *Replayer) Sync(ctx context.Context, hooks ReplayHooks) (synced, failed int, err error) {
	if !r.conn.Online() {
		return 0, 0, domain.ErrOffline
	}

	items, err := r.local.QueuedSaves(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(items) == 0 {
		return 0, 0, nil
	}

	r.logger.Info("replaying queued saves", ports.Int("queued", len(items)))

	for _, item := range items {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if hooks.Skip != nil && hooks.Skip(item.DocumentID) {
			r.logger.Debug("skipping queued save for actively edited document",
				ports.String("document", item.DocumentID),
			)
			continue
		}

		if rerr := r.replayItem(ctx, item); rerr != nil {
			failed++
			if hooks.OnFailed != nil {
				hooks.OnFailed(item.DocumentID, rerr)
			}
			continue
		}

		synced++
		if hooks.OnSynced != nil {
			hooks.OnSynced(item.DocumentID)
		}
	}

	return synced, failed, nil
}

// replayItem pushes one queued save to the remote store. On success the
// entry and its offline draft are removed; on failure the entry stays with
// its retry counter bumped.
func (r *Replayer) replayItem(ctx context.Context, item domain.QueuedSave) error {
	_, err := r.remote.Update(ctx, item.DocumentID, item.Content, item.WordCount)
	if err == nil {
		if rerr := r.local.RemoveQueuedSave(ctx, item.ID); rerr != nil {
			r.logger.Warn("synced but failed to remove queue entry",
				ports.String("document", item.DocumentID),
				ports.Err(rerr),
			)
		}
		if derr := r.local.DeleteDraft(ctx, item.DocumentID); derr != nil {
			r.logger.Warn("synced but failed to remove offline draft",
				ports.String("document", item.DocumentID),
				ports.Err(derr),
			)
		}
		r.logger.Debug("queued save replayed",
			ports.String("document", item.DocumentID),
			ports.Time("queued_at", item.Timestamp),
		)
		return nil
	}

	if errors.Is(err, domain.ErrDocumentVanished) {
		// Replaying would resurrect a deleted document. Escrow and drop.
		r.escrowAndDrop(ctx, item, "remote document vanished during replay")
		return err
	}

	if berr := r.local.BumpRetry(ctx, item.ID); berr != nil {
		r.logger.Warn("failed to bump retry counter",
			ports.String("document", item.DocumentID),
			ports.Err(berr),
		)
	}
	if r.maxItemRetries > 0 && item.RetryCount+1 >= r.maxItemRetries {
		r.escrowAndDrop(ctx, item, "replay retry cap reached")
		return err
	}

	r.logger.Warn("replay failed, entry kept for retry",
		ports.String("document", item.DocumentID),
		ports.Int("retries", item.RetryCount+1),
		ports.Err(err),
	)
	return err
}

func (r *Replayer) escrowAndDrop(ctx context.Context, item domain.QueuedSave, reason string) {
	record := domain.DraftRecord{
		ID:           domain.ConflictDraftID(item.DocumentID),
		DocumentID:   item.DocumentID,
		ParentID:     item.ParentID,
		Content:      item.Content,
		LastModified: time.Now(),
		OfflineDraft: true,
		Conflict:     true,
	}
	if err := r.local.SaveDraft(ctx, record); err != nil {
		// Keep the queue entry; dropping it now would lose the content.
		r.logger.Error("failed to escrow conflict draft, keeping queue entry",
			ports.String("document", item.DocumentID),
			ports.Err(err),
		)
		return
	}
	if err := r.local.RemoveQueuedSave(ctx, item.ID); err != nil {
		r.logger.Warn("failed to remove escrowed queue entry",
			ports.String("document", item.DocumentID),
			ports.Err(err),
		)
	}
	r.logger.Warn(reason,
		ports.String("document", item.DocumentID),
		ports.String("draft", record.ID),
	)
}
