package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ottopen/draftsync/internal/domain"
	"github.com/ottopen/draftsync/internal/ports"
)

// testWindow keeps debounce waits short; assertions wait several multiples
// of it before declaring a save missing.
const testWindow = 30 * time.Millisecond

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// fakeConn implements ports.Connectivity with a settable flag.
type fakeConn struct {
	mu     sync.Mutex
	online bool
}

func (f *fakeConn) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeConn) setOnline(v bool) {
	f.mu.Lock()
	f.online = v
	f.mu.Unlock()
}

func (f *fakeConn) Subscribe(onOnline, onOffline func()) func() {
	return func() {}
}

type updateCall struct {
	documentID string
	content    string
	wordCount  int
}

// fakeRemote implements ports.DocumentStore with injectable failures and a
// configurable delay so tests can hold an update in flight.
type fakeRemote struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	getErr      error
	updateErrs  map[string]error
	updateDelay time.Duration

	getCalls int
	updates  []updateCall

	// activeWrites counts update calls past the in-flight delay; overlap
	// records whether two such writes for the same document ever ran
	// concurrently.
	activeWrites map[string]int
	overlap      bool
}

func newFakeRemote(docs ...string) *fakeRemote {
	f := &fakeRemote{
		docs:         make(map[string]*domain.Document),
		updateErrs:   make(map[string]error),
		activeWrites: make(map[string]int),
	}
	for _, id := range docs {
		f.docs[id] = &domain.Document{ID: id, Version: 1}
	}
	return f
}

func (f *fakeRemote) GetByID(ctx context.Context, documentID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, nil
	}
	copy := *doc
	return &copy, nil
}

func (f *fakeRemote) Update(ctx context.Context, documentID string, content string, wordCount int) (*domain.Document, error) {
	f.mu.Lock()
	delay := f.updateDelay
	uerr := f.updateErrs[documentID]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if uerr != nil {
		return nil, uerr
	}

	f.mu.Lock()
	f.activeWrites[documentID]++
	if f.activeWrites[documentID] > 1 {
		f.overlap = true
	}
	f.mu.Unlock()

	// Hold the write section open briefly so a genuinely overlapping
	// writer would be observed.
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	f.activeWrites[documentID]--
	f.updates = append(f.updates, updateCall{documentID, content, wordCount})
	doc, ok := f.docs[documentID]
	if !ok {
		doc = &domain.Document{ID: documentID}
		f.docs[documentID] = doc
	}
	doc.Content = content
	doc.WordCount = wordCount
	doc.Version++
	doc.UpdatedAt = time.Now()
	copy := *doc
	f.mu.Unlock()
	return &copy, nil
}

func (f *fakeRemote) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeRemote) lastUpdate() (updateCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return updateCall{}, false
	}
	return f.updates[len(f.updates)-1], true
}

// fakeLocal implements ports.DraftStore in memory with the same coalescing
// semantics as the SQLite adapter.
type fakeLocal struct {
	mu     sync.Mutex
	drafts map[string]domain.DraftRecord
	queue  []domain.QueuedSave

	saveDraftErr error
	enqueueErr   error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{drafts: make(map[string]domain.DraftRecord)}
}

func (f *fakeLocal) SaveDraft(ctx context.Context, record domain.DraftRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveDraftErr != nil {
		return f.saveDraftErr
	}
	f.drafts[record.ID] = record
	return nil
}

func (f *fakeLocal) Draft(ctx context.Context, id string) (*domain.DraftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.drafts[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeLocal) DraftsForParent(ctx context.Context, parentID string) ([]domain.DraftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DraftRecord
	for _, r := range f.drafts {
		if r.ParentID == parentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLocal) DeleteDraft(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, id)
	return nil
}

func (f *fakeLocal) EnqueueSave(ctx context.Context, save domain.QueuedSave) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	for i, q := range f.queue {
		if q.DocumentID == save.DocumentID {
			f.queue[i].Content = save.Content
			f.queue[i].WordCount = save.WordCount
			f.queue[i].RetryCount = 0
			return nil
		}
	}
	f.queue = append(f.queue, save)
	return nil
}

func (f *fakeLocal) QueuedSaves(ctx context.Context) ([]domain.QueuedSave, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.QueuedSave{}, f.queue...), nil
}

func (f *fakeLocal) RemoveQueuedSave(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, q := range f.queue {
		if q.ID == id {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeLocal) RemoveQueuedForDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, q := range f.queue {
		if q.DocumentID == documentID {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeLocal) BumpRetry(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, q := range f.queue {
		if q.ID == id {
			f.queue[i].RetryCount++
		}
	}
	return nil
}

func (f *fakeLocal) ClearDrafts(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = make(map[string]domain.DraftRecord)
	return nil
}

func (f *fakeLocal) ClearQueue(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = nil
	return nil
}

func (f *fakeLocal) Close() error { return nil }

func (f *fakeLocal) queueLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *fakeLocal) draftCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drafts)
}

func (f *fakeLocal) draftByID(id string) (domain.DraftRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.drafts[id]
	return r, ok
}

func (f *fakeLocal) conflictDrafts() []domain.DraftRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DraftRecord
	for _, r := range f.drafts {
		if r.Conflict {
			out = append(out, r)
		}
	}
	return out
}

func newTestCoordinator(remote *fakeRemote, local *fakeLocal, conn *fakeConn) *Coordinator {
	return NewCoordinator(testWindow, remote, local, conn, mockLogger{}, nil, nil)
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestCoordinator_DebounceCoalesces(t *testing.T) {
	remote := newFakeRemote("doc1")
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 0)
	c.UpdateContent("doc1", "hello w")
	c.UpdateContent("doc1", "hello wo")
	c.UpdateContent("doc1", "hello world")

	if !waitFor(t, 20*testWindow, func() bool { return remote.updateCount() > 0 }) {
		t.Fatal("debounced save never fired")
	}
	// Allow a stray second attempt to surface before counting.
	time.Sleep(3 * testWindow)

	if got := remote.updateCount(); got != 1 {
		t.Fatalf("update count = %d, want exactly 1", got)
	}
	last, _ := remote.lastUpdate()
	if last.content != "hello world" {
		t.Errorf("saved content = %q, want content of last call in burst", last.content)
	}
	if last.wordCount != 2 {
		t.Errorf("word count = %d, want 2", last.wordCount)
	}
	if c.HasUnsavedChanges("doc1") {
		t.Error("HasUnsavedChanges = true after confirmed save")
	}
	if got := c.LastSavedVersion("doc1"); got != 1 {
		t.Errorf("LastSavedVersion = %d, want 1", got)
	}
	if _, ok := c.LastSavedTime("doc1"); !ok {
		t.Error("LastSavedTime unset after confirmed save")
	}
}

func TestCoordinator_NoConcurrentRemoteWrites(t *testing.T) {
	remote := newFakeRemote("doc1")
	remote.updateDelay = 5 * testWindow
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 0)

	// First attempt stalls in flight; the second must cancel it before
	// issuing its own write.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.ForceSave("doc1")
	}()
	time.Sleep(testWindow)
	c.UpdateContent("doc1", "hello world")
	if !c.ForceSave("doc1") {
		t.Fatal("second ForceSave failed")
	}
	wg.Wait()

	remote.mu.Lock()
	overlap := remote.overlap
	remote.mu.Unlock()
	if overlap {
		t.Error("remote store observed overlapping writes for one document")
	}
	if got := remote.updateCount(); got != 1 {
		t.Errorf("committed updates = %d, want 1 (first attempt superseded)", got)
	}
	last, _ := remote.lastUpdate()
	if last.content != "hello world" {
		t.Errorf("committed content = %q, want newest", last.content)
	}
	if got := c.LastSavedVersion("doc1"); got != 1 {
		t.Errorf("LastSavedVersion = %d, want 1 (superseded attempt must not bump)", got)
	}
}

func TestCoordinator_OfflineFallback(t *testing.T) {
	remote := newFakeRemote("doc1")
	local := newFakeLocal()
	conn := &fakeConn{online: false}
	c := newTestCoordinator(remote, local, conn)
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 0)

	for i, content := range []string{"draft one", "draft two", "draft three"} {
		c.UpdateContent("doc1", content)
		if !waitFor(t, 20*testWindow, func() bool {
			r, ok := local.draftByID("doc1")
			return ok && r.Content == content
		}) {
			t.Fatalf("offline draft %d never persisted", i)
		}
	}

	if remote.getCalls != 0 || remote.updateCount() != 0 {
		t.Error("offline attempt touched the network")
	}
	if got := local.draftCount(); got != 1 {
		t.Errorf("draft count = %d, want 1 (upsert by document id)", got)
	}
	r, _ := local.draftByID("doc1")
	if !r.OfflineDraft {
		t.Error("draft not marked as offline draft")
	}
	if got := local.queueLen(); got != 1 {
		t.Errorf("queue length = %d, want 1 (coalesced per document)", got)
	}
	saves, _ := local.QueuedSaves(context.Background())
	if saves[0].Content != "draft three" {
		t.Errorf("queued content = %q, latest content must not be dropped", saves[0].Content)
	}
	if !c.HasUnsavedChanges("doc1") {
		t.Error("local success must not clear pendingSave")
	}
	if _, ok := c.LastSavedTime("doc1"); !ok {
		t.Error("LastSavedTime unset after local save")
	}
}

func TestCoordinator_VanishedDocumentEscrowsConflict(t *testing.T) {
	remote := newFakeRemote() // document does not exist remotely
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 3)
	c.UpdateContent("doc1", "precious words")

	if !waitFor(t, 20*testWindow, func() bool { return len(local.conflictDrafts()) > 0 }) {
		t.Fatal("conflict draft never persisted")
	}

	if got := remote.updateCount(); got != 0 {
		t.Errorf("update called %d times for vanished document, want 0", got)
	}
	conflicts := local.conflictDrafts()
	if len(conflicts) != 1 {
		t.Fatalf("conflict drafts = %d, want 1", len(conflicts))
	}
	cd := conflicts[0]
	if cd.ID == "doc1" {
		t.Error("conflict draft stored under the plain document id")
	}
	if !strings.HasPrefix(cd.ID, "doc1.conflict.") {
		t.Errorf("conflict draft id = %q, want doc1.conflict.* prefix", cd.ID)
	}
	if cd.DocumentID != "doc1" || cd.Content != "precious words" {
		t.Errorf("conflict draft = %+v, want original document id and content", cd)
	}
	if got := c.LastSavedVersion("doc1"); got != 3 {
		t.Errorf("LastSavedVersion = %d, conflict must not advance version", got)
	}
}

func TestCoordinator_RemoteFailureFallsBackLocally(t *testing.T) {
	remote := newFakeRemote("doc1")
	remote.updateErrs["doc1"] = errors.New("boom")
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 0)
	c.UpdateContent("doc1", "best effort")

	if !waitFor(t, 20*testWindow, func() bool { return local.queueLen() == 1 }) {
		t.Fatal("failed save never queued for replay")
	}
	r, ok := local.draftByID("doc1")
	if !ok || r.Content != "best effort" {
		t.Errorf("fallback draft = %+v, want content persisted", r)
	}
	if !c.HasUnsavedChanges("doc1") {
		t.Error("failed attempt must leave pendingSave set")
	}

	// ForceSave reports failure when only the local fallback succeeded
	// after a remote error.
	if c.ForceSave("doc1") {
		t.Error("ForceSave = true, want false when remote write failed")
	}
}

func TestCoordinator_ForceSaveBypassesDebounce(t *testing.T) {
	remote := newFakeRemote("doc1")
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 0)
	c.UpdateContent("doc1", "hello world")

	if !c.ForceSave("doc1") {
		t.Fatal("ForceSave failed")
	}
	if got := remote.updateCount(); got != 1 {
		t.Fatalf("update count = %d, want 1 immediately", got)
	}

	// The debounce timer was cancelled; no second save may fire later.
	time.Sleep(3 * testWindow)
	if got := remote.updateCount(); got != 1 {
		t.Errorf("update count = %d after window, debounce timer leaked", got)
	}
}

func TestCoordinator_LocalPersistenceFailureKeepsContent(t *testing.T) {
	remote := newFakeRemote("doc1")
	local := newFakeLocal()
	local.saveDraftErr = errors.New("disk full")
	conn := &fakeConn{online: false}
	c := newTestCoordinator(remote, local, conn)
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 0)
	c.UpdateContent("doc1", "fragile words")

	if c.ForceSave("doc1") {
		t.Error("ForceSave = true, want false when local persistence failed")
	}
	if !c.HasUnsavedChanges("doc1") {
		t.Error("in-memory content must stay pending after total failure")
	}

	// Durability recovers on the next attempt once the store works again.
	local.mu.Lock()
	local.saveDraftErr = nil
	local.mu.Unlock()
	if !c.ForceSave("doc1") {
		t.Error("ForceSave failed after store recovered")
	}
	r, ok := local.draftByID("doc1")
	if !ok || r.Content != "fragile words" {
		t.Errorf("draft = %+v, want retained content persisted", r)
	}
}

func TestCoordinator_CleanupStopsTimers(t *testing.T) {
	remote := newFakeRemote("doc1")
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})

	c.InitDocument("doc1", "ms1", "hello", 0)
	c.UpdateContent("doc1", "hello world")
	c.Cleanup("doc1")

	time.Sleep(5 * testWindow)

	if got := remote.updateCount(); got != 0 {
		t.Errorf("update count = %d after cleanup, want 0", got)
	}
	if got := local.draftCount(); got != 0 {
		t.Errorf("draft count = %d after cleanup, want 0", got)
	}
	if c.HasUnsavedChanges("doc1") {
		t.Error("cleaned-up document still reports unsaved changes")
	}
}

func TestCoordinator_InitDocumentTwiceIsNoop(t *testing.T) {
	remote := newFakeRemote("doc1")
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "original", 2)
	c.UpdateContent("doc1", "edited")
	c.InitDocument("doc1", "ms1", "reset", 0)

	if !c.HasUnsavedChanges("doc1") {
		t.Error("second InitDocument reset pending state")
	}
	if got := c.LastSavedVersion("doc1"); got != 2 {
		t.Errorf("LastSavedVersion = %d, second InitDocument reset version", got)
	}
}

func TestCoordinator_UntrackedDocumentOperations(t *testing.T) {
	remote := newFakeRemote()
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})

	// None of these may panic or touch collaborators.
	c.UpdateContent("ghost", "boo")
	if c.ForceSave("ghost") {
		t.Error("ForceSave succeeded for untracked document")
	}
	if c.HasUnsavedChanges("ghost") {
		t.Error("untracked document reports unsaved changes")
	}
	if _, ok := c.LastSavedTime("ghost"); ok {
		t.Error("untracked document reports a save time")
	}
	c.Cleanup("ghost")

	time.Sleep(3 * testWindow)
	if remote.getCalls != 0 || remote.updateCount() != 0 {
		t.Error("untracked operations reached the remote store")
	}
}

func TestCoordinator_EditDuringFlightKeepsPending(t *testing.T) {
	remote := newFakeRemote("doc1")
	remote.updateDelay = 4 * testWindow
	local := newFakeLocal()
	c := newTestCoordinator(remote, local, &fakeConn{online: true})
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 0)
	c.UpdateContent("doc1", "first")

	done := make(chan bool, 1)
	go func() { done <- c.ForceSave("doc1") }()

	// Edit while the save request is still in flight.
	time.Sleep(testWindow)
	c.UpdateContent("doc1", "second")

	if ok := <-done; !ok {
		t.Fatal("in-flight ForceSave failed")
	}
	if got := c.LastSavedVersion("doc1"); got != 1 {
		t.Errorf("LastSavedVersion = %d, want 1", got)
	}
	if !c.HasUnsavedChanges("doc1") {
		t.Error("edit during flight lost pendingSave; newer content would never save")
	}

	// The edit armed a fresh debounce; the newer content lands eventually.
	if !waitFor(t, 20*testWindow, func() bool {
		last, ok := remote.lastUpdate()
		return ok && last.content == "second"
	}) {
		t.Error("newer content never saved after in-flight edit")
	}
}

// TestCoordinator_ConfirmedSaveDropsStaleQueue covers the editing-while-
// replaying hazard: once the remote holds newer content, older queued saves
// for that document must not linger.
func TestCoordinator_ConfirmedSaveDropsStaleQueue(t *testing.T) {
	remote := newFakeRemote("doc1")
	local := newFakeLocal()
	conn := &fakeConn{online: false}
	c := newTestCoordinator(remote, local, conn)
	defer c.Shutdown()

	c.InitDocument("doc1", "ms1", "hello", 0)
	c.UpdateContent("doc1", "offline words")
	if !waitFor(t, 20*testWindow, func() bool { return local.queueLen() == 1 }) {
		t.Fatal("offline save never queued")
	}

	conn.setOnline(true)
	c.UpdateContent("doc1", "online words")
	if !waitFor(t, 20*testWindow, func() bool { return remote.updateCount() == 1 }) {
		t.Fatal("online save never confirmed")
	}

	if got := local.queueLen(); got != 0 {
		t.Errorf("queue length = %d after confirmed newer save, want 0", got)
	}
	if got := local.draftCount(); got != 0 {
		t.Errorf("draft count = %d after confirmed newer save, want 0", got)
	}
}
