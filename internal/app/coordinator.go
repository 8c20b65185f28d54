package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ottopen/draftsync/internal/domain"
	"github.com/ottopen/draftsync/internal/ports"
)

// DefaultDebounceWindow is the delay after the last edit before a save
// attempt is scheduled.
const DefaultDebounceWindow = 3 * time.Second

// saveState tracks save progress for one open document. It is owned
// exclusively by the Coordinator and guarded by the Coordinator's mutex.
type saveState struct {
	documentID string
	parentID   string

	// content is the latest in-memory content, mutated only by UpdateContent.
	content string

	// lastSavedVersion increases only after a confirmed remote save.
	lastSavedVersion int64
	lastSavedAt      time.Time

	// pendingSave is true iff content diverged from the last confirmed save.
	pendingSave bool

	// timer is the scheduled debounced attempt; at most one per document.
	timer *time.Timer

	// generation identifies the current save attempt. An attempt commits
	// state only while its generation is still current; bumping it cancels
	// cooperation from older in-flight attempts.
	generation uint64

	// cancelInFlight aborts the network call of the current attempt.
	cancelInFlight context.CancelFunc
}

// SaveOutcome classifies the result of a save attempt.
type SaveOutcome int

const (
	// SaveNoop means there was nothing pending to save.
	SaveNoop SaveOutcome = iota
	// SaveRemote means the remote store confirmed the write.
	SaveRemote
	// SaveLocal means the content was durably persisted locally and queued
	// for replay; the remote store has not confirmed it.
	SaveLocal
	// SaveConflict means the remote document vanished and the content was
	// escrowed under a conflict draft identifier.
	SaveConflict
	// SaveSuperseded means a newer attempt preempted this one; the newer
	// attempt owns the outcome.
	SaveSuperseded
	// SaveFailed means both the remote write and the local fallback failed.
	// In-memory content is retained, only durability is degraded.
	SaveFailed
)

// OK reports whether the outcome counts as a success for callers that only
// want a boolean ("did my content end up somewhere durable").
func (o SaveOutcome) OK() bool {
	return o == SaveNoop || o == SaveRemote || o == SaveLocal
}

// String returns a human-readable representation of the outcome.
func (o SaveOutcome) String() string {
	switch o {
	case SaveNoop:
		return "noop"
	case SaveRemote:
		return "saved"
	case SaveLocal:
		return "saved-offline"
	case SaveConflict:
		return "conflict"
	case SaveSuperseded:
		return "superseded"
	case SaveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AttemptObserver is notified after every completed save attempt.
// Callbacks run synchronously on the attempt's goroutine.
type AttemptObserver interface {
	OnSaveAttempt(documentID string, outcome SaveOutcome, err error)
}

// Coordinator translates a stream of content-mutation events into a bounded
// rate of durable save attempts. It guarantees the remote store never
// receives two concurrent writes for the same document and that no edit is
// silently lost.
//
// A Coordinator is safe for concurrent use. Attempts for different documents
// are fully independent and may overlap freely; attempts for the same
// document are strictly serialized via generation-counter cancellation.
type Coordinator struct {
	window   time.Duration
	remote   ports.DocumentStore
	local    ports.DraftStore
	conn     ports.Connectivity
	logger   ports.Logger
	metric   domain.MetricFunc
	observer AttemptObserver

	mu   sync.Mutex
	docs map[string]*saveState
}

// NewCoordinator creates a Coordinator with the given collaborators.
// A non-positive window falls back to DefaultDebounceWindow; a nil metric
// falls back to domain.WordCount. The observer may be nil.
func NewCoordinator(
	window time.Duration,
	remote ports.DocumentStore,
	local ports.DraftStore,
	conn ports.Connectivity,
	logger ports.Logger,
	metric domain.MetricFunc,
	observer AttemptObserver,
) *Coordinator {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if metric == nil {
		metric = domain.WordCount
	}
	return &Coordinator{
		window:   window,
		remote:   remote,
		local:    local,
		conn:     conn,
		logger:   logger,
		metric:   metric,
		observer: observer,
		docs:     make(map[string]*saveState),
	}
}

// InitDocument begins tracking a document. Calling it twice for the same id
// without an intervening Cleanup is a no-op with a warning.
func (c *Coordinator) InitDocument(documentID, parentID, initialContent string, version int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[documentID]; exists {
		c.logger.Warn("document already tracked, ignoring InitDocument",
			ports.String("document", documentID),
		)
		return
	}

	c.docs[documentID] = &saveState{
		documentID:       documentID,
		parentID:         parentID,
		content:          initialContent,
		lastSavedVersion: version,
	}
}

// UpdateContent overwrites the in-memory content and resets the debounce
// window. Only the last call in a burst within the window triggers a save
// attempt. It never touches the network and never fails; calls for untracked
// documents are logged and dropped.
func (c *Coordinator) UpdateContent(documentID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.docs[documentID]
	if !ok {
		c.logger.Warn("UpdateContent for untracked document",
			ports.String("document", documentID),
		)
		return
	}

	st.content = content
	st.pendingSave = true

	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(c.window, func() {
		c.attemptSave(documentID)
	})
}

// ForceSave cancels any pending debounce timer, marks the document pending
// unconditionally and runs the save attempt synchronously. Returns true when
// the content ended up durable (remote or local).
func (c *Coordinator) ForceSave(documentID string) bool {
	c.mu.Lock()
	st, ok := c.docs[documentID]
	if !ok {
		c.mu.Unlock()
		c.logger.Warn("ForceSave for untracked document",
			ports.String("document", documentID),
		)
		return false
	}
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.pendingSave = true
	c.mu.Unlock()

	outcome, err := c.attemptSave(documentID)
	return err == nil && outcome.OK()
}

// HasUnsavedChanges reports whether content diverged from the last confirmed
// remote save. Untracked documents report false.
func (c *Coordinator) HasUnsavedChanges(documentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.docs[documentID]
	return ok && st.pendingSave
}

// LastSavedTime returns the timestamp of the last confirmed save attempt.
// The second return value is false when the document is untracked or was
// never saved this session.
func (c *Coordinator) LastSavedTime(documentID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.docs[documentID]
	if !ok || st.lastSavedAt.IsZero() {
		return time.Time{}, false
	}
	return st.lastSavedAt, true
}

// LastSavedVersion returns the version of the last confirmed remote save,
// or zero for untracked documents.
func (c *Coordinator) LastSavedVersion(documentID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.docs[documentID]
	if !ok {
		return 0
	}
	return st.lastSavedVersion
}

// Cleanup stops the debounce timer, cancels any in-flight attempt and
// discards the document's state. Must be called when a document is closed.
func (c *Coordinator) Cleanup(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.docs[documentID]
	if !ok {
		return
	}
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	if st.cancelInFlight != nil {
		st.cancelInFlight()
		st.cancelInFlight = nil
	}
	// Invalidate any attempt that is still running.
	st.generation++
	delete(c.docs, documentID)
}

// Shutdown cleans up every tracked document.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.Cleanup(id)
	}
}

// attemptSave runs one debounced save attempt for a document.
//
// A new attempt always preempts an older one still waiting on the network:
// the previous in-flight context is cancelled and the generation counter is
// bumped, so the older attempt exits without mutating shared state.
//
// A nil error with SaveLocal means the offline fallback was taken by choice
// (oracle reported offline); a non-nil error with SaveLocal means a remote
// failure was recovered locally and the attempt still counts as failed.
func (c *Coordinator) attemptSave(documentID string) (SaveOutcome, error) {
	c.mu.Lock()
	st, ok := c.docs[documentID]
	if !ok {
		c.mu.Unlock()
		return SaveNoop, nil
	}
	if !st.pendingSave {
		// Content was already saved, e.g. by a manual ForceSave.
		c.mu.Unlock()
		return SaveNoop, nil
	}

	if st.cancelInFlight != nil {
		st.cancelInFlight()
	}
	st.generation++
	gen := st.generation

	ctx, cancel := context.WithCancel(context.Background())
	st.cancelInFlight = cancel

	content := st.content
	parentID := st.parentID
	c.mu.Unlock()

	outcome, err := c.runAttempt(ctx, documentID, parentID, content, gen)
	cancel()

	if c.observer != nil && outcome != SaveSuperseded {
		c.observer.OnSaveAttempt(documentID, outcome, err)
	}
	return outcome, err
}

func (c *Coordinator) runAttempt(ctx context.Context, documentID, parentID, content string, gen uint64) (SaveOutcome, error) {
	if !c.conn.Online() {
		return c.persistLocally(ctx, documentID, parentID, content, gen)
	}

	// Existence probe: never write over a document that vanished remotely.
	doc, err := c.remote.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return SaveSuperseded, domain.ErrSuperseded
		}
		c.logger.Debug("remote lookup failed, falling back to local persistence",
			ports.String("document", documentID),
			ports.Err(err),
		)
		outcome, lerr := c.persistLocally(ctx, documentID, parentID, content, gen)
		if outcome == SaveLocal {
			return SaveLocal, err
		}
		return outcome, lerr
	}
	if doc == nil {
		return c.escrowConflict(ctx, documentID, parentID, content)
	}

	if _, err := c.remote.Update(ctx, documentID, content, c.metric(content)); err != nil {
		if errors.Is(err, context.Canceled) {
			return SaveSuperseded, domain.ErrSuperseded
		}
		if errors.Is(err, domain.ErrDocumentVanished) {
			// Deleted between the probe and the write.
			return c.escrowConflict(ctx, documentID, parentID, content)
		}
		c.logger.Debug("remote update failed, falling back to local persistence",
			ports.String("document", documentID),
			ports.Err(err),
		)
		outcome, lerr := c.persistLocally(ctx, documentID, parentID, content, gen)
		if outcome == SaveLocal {
			return SaveLocal, err
		}
		return outcome, lerr
	}

	return c.commitRemote(ctx, documentID, content, gen)
}

// commitRemote advances version bookkeeping after a confirmed remote write,
// unless a newer attempt superseded this one in the meantime.
func (c *Coordinator) commitRemote(ctx context.Context, documentID, sent string, gen uint64) (SaveOutcome, error) {
	c.mu.Lock()
	st, ok := c.docs[documentID]
	if !ok || st.generation != gen {
		c.mu.Unlock()
		return SaveSuperseded, domain.ErrSuperseded
	}
	st.lastSavedVersion++
	st.lastSavedAt = time.Now()
	st.cancelInFlight = nil
	// Edits made while the request was in flight stay pending; the timer
	// they armed will run the next attempt.
	st.pendingSave = st.content != sent
	version := st.lastSavedVersion
	c.mu.Unlock()

	// The remote now holds this content; a stale local draft or queued
	// replay for the same document must not resurrect older text.
	if err := c.local.DeleteDraft(ctx, documentID); err != nil {
		c.logger.Warn("failed to drop stale draft after remote save",
			ports.String("document", documentID),
			ports.Err(err),
		)
	}
	if err := c.local.RemoveQueuedForDocument(ctx, documentID); err != nil {
		c.logger.Warn("failed to drop stale queue entry after remote save",
			ports.String("document", documentID),
			ports.Err(err),
		)
	}

	c.logger.Debug("remote save confirmed",
		ports.String("document", documentID),
		ports.Int64("version", version),
	)
	return SaveRemote, nil
}

// persistLocally is the offline and failure fallback: upsert a draft record
// and coalesce a queue entry so the Sync Replayer can replay it later. This
// is a local success, not a remote confirmation, so pendingSave stays true.
func (c *Coordinator) persistLocally(ctx context.Context, documentID, parentID, content string, gen uint64) (SaveOutcome, error) {
	now := time.Now()
	record := domain.DraftRecord{
		ID:           documentID,
		DocumentID:   documentID,
		ParentID:     parentID,
		Content:      content,
		LastModified: now,
		OfflineDraft: true,
	}
	if err := c.local.SaveDraft(ctx, record); err != nil {
		if errors.Is(err, context.Canceled) {
			return SaveSuperseded, domain.ErrSuperseded
		}
		// Both remote and local durability failed for this attempt. The
		// content is still held in memory until the next attempt.
		c.logger.Error("local draft persistence failed",
			ports.String("document", documentID),
			ports.Err(err),
		)
		return SaveFailed, err
	}

	save := domain.NewQueuedSave(documentID, parentID, content, c.metric(content))
	if err := c.local.EnqueueSave(ctx, save); err != nil {
		if errors.Is(err, context.Canceled) {
			return SaveSuperseded, domain.ErrSuperseded
		}
		c.logger.Error("failed to enqueue save for replay",
			ports.String("document", documentID),
			ports.Err(err),
		)
		return SaveFailed, err
	}

	c.mu.Lock()
	if st, ok := c.docs[documentID]; ok && st.generation == gen {
		st.lastSavedAt = now
		st.cancelInFlight = nil
	}
	c.mu.Unlock()

	c.logger.Debug("content saved locally, queued for replay",
		ports.String("document", documentID),
	)
	return SaveLocal, nil
}

// escrowConflict persists content under a conflict-scoped identifier instead
// of resurrecting a remotely deleted document. No automatic resolution is
// attempted; the draft waits for the user or an operator.
func (c *Coordinator) escrowConflict(ctx context.Context, documentID, parentID, content string) (SaveOutcome, error) {
	record := domain.DraftRecord{
		ID:           domain.ConflictDraftID(documentID),
		DocumentID:   documentID,
		ParentID:     parentID,
		Content:      content,
		LastModified: time.Now(),
		OfflineDraft: true,
		Conflict:     true,
	}
	if err := c.local.SaveDraft(ctx, record); err != nil {
		c.logger.Error("failed to escrow conflict draft",
			ports.String("document", documentID),
			ports.Err(err),
		)
		return SaveFailed, err
	}

	c.logger.Warn("remote document vanished, content escrowed as conflict draft",
		ports.String("document", documentID),
		ports.String("draft", record.ID),
	)
	return SaveConflict, domain.ErrDocumentVanished
}
