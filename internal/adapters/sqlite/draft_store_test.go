package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ottopen/draftsync/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "drafts.db"))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_DraftRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	modified := time.Now().Add(-time.Minute)
	record := domain.DraftRecord{
		ID:           "doc1",
		DocumentID:   "doc1",
		ParentID:     "ms1",
		Content:      "once upon a time",
		LastModified: modified,
		OfflineDraft: true,
	}
	if err := s.SaveDraft(ctx, record); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	got, err := s.Draft(ctx, "doc1")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if got == nil {
		t.Fatal("Draft returned nil for existing record")
	}
	if got.Content != record.Content || got.ParentID != record.ParentID {
		t.Errorf("Draft = %+v, want %+v", got, record)
	}
	if !got.OfflineDraft || got.Conflict {
		t.Errorf("flags = offline:%v conflict:%v, want offline:true conflict:false", got.OfflineDraft, got.Conflict)
	}
	if !got.LastModified.Equal(modified) {
		t.Errorf("LastModified = %v, want %v", got.LastModified, modified)
	}
}

func TestStore_DraftAbsentReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Draft(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if got != nil {
		t.Errorf("Draft = %+v, want nil for absent record", got)
	}
}

func TestStore_SaveDraftUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := domain.DraftRecord{
		ID: "doc1", DocumentID: "doc1", ParentID: "ms1",
		Content: "v1", LastModified: time.Now(),
	}
	if err := s.SaveDraft(ctx, record); err != nil {
		t.Fatal(err)
	}
	record.Content = "v2"
	record.Conflict = true
	if err := s.SaveDraft(ctx, record); err != nil {
		t.Fatal(err)
	}

	got, err := s.Draft(ctx, "doc1")
	if err != nil || got == nil {
		t.Fatalf("Draft: %+v, %v", got, err)
	}
	if got.Content != "v2" || !got.Conflict {
		t.Errorf("after upsert: content=%q conflict=%v, want v2/true", got.Content, got.Conflict)
	}

	records, err := s.DraftsForParent(ctx, "ms1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("upsert created %d records, want 1", len(records))
	}
}

func TestStore_DraftsForParentOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"old", "newest", "middle"} {
		offsets := []time.Duration{-3 * time.Hour, 0, -time.Hour}
		record := domain.DraftRecord{
			ID: id, DocumentID: id, ParentID: "ms1",
			Content: id, LastModified: base.Add(offsets[i]),
		}
		if err := s.SaveDraft(ctx, record); err != nil {
			t.Fatal(err)
		}
	}
	// A draft under a different parent must not leak in.
	other := domain.DraftRecord{
		ID: "other", DocumentID: "other", ParentID: "ms2",
		Content: "other", LastModified: base,
	}
	if err := s.SaveDraft(ctx, other); err != nil {
		t.Fatal(err)
	}

	records, err := s.DraftsForParent(ctx, "ms1")
	if err != nil {
		t.Fatalf("DraftsForParent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	wantOrder := []string{"newest", "middle", "old"}
	for i, want := range wantOrder {
		if records[i].ID != want {
			t.Errorf("records[%d] = %s, want %s (most recently modified first)", i, records[i].ID, want)
		}
	}
}

func TestStore_DeleteDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := domain.DraftRecord{
		ID: "doc1", DocumentID: "doc1", ParentID: "ms1",
		Content: "bye", LastModified: time.Now(),
	}
	if err := s.SaveDraft(ctx, record); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDraft(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}
	if got, _ := s.Draft(ctx, "doc1"); got != nil {
		t.Error("draft still present after delete")
	}

	// Deleting an absent draft is not an error.
	if err := s.DeleteDraft(ctx, "doc1"); err != nil {
		t.Errorf("DeleteDraft absent: %v", err)
	}
}

func TestStore_QueueCoalescesPerDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := domain.NewQueuedSave("doc1", "ms1", "draft one", 2)
	if err := s.EnqueueSave(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := domain.NewQueuedSave("doc2", "ms1", "other", 1)
	if err := s.EnqueueSave(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err := s.BumpRetry(ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	// Re-enqueueing doc1 replaces its content in place and resets retries.
	replacement := domain.NewQueuedSave("doc1", "ms1", "draft one revised", 3)
	if err := s.EnqueueSave(ctx, replacement); err != nil {
		t.Fatal(err)
	}

	saves, err := s.QueuedSaves(ctx)
	if err != nil {
		t.Fatalf("QueuedSaves: %v", err)
	}
	if len(saves) != 2 {
		t.Fatalf("queue length = %d, want 2 (one per document)", len(saves))
	}
	// doc1 keeps its original position and ID.
	if saves[0].DocumentID != "doc1" || saves[0].ID != first.ID {
		t.Errorf("saves[0] = %+v, want original doc1 entry", saves[0])
	}
	if saves[0].Content != "draft one revised" || saves[0].WordCount != 3 {
		t.Errorf("coalesced content = %q/%d, want replacement values", saves[0].Content, saves[0].WordCount)
	}
	if saves[0].RetryCount != 0 {
		t.Errorf("retry count = %d, want reset to 0 for new content", saves[0].RetryCount)
	}
}

func TestStore_QueueOrderAndRemoval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i, doc := range []string{"a", "b", "c"} {
		save := domain.QueuedSave{
			ID:         doc + ":1",
			DocumentID: doc,
			ParentID:   "ms1",
			Content:    doc,
			WordCount:  1,
			Timestamp:  time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := s.EnqueueSave(ctx, save); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, save.ID)
	}

	if err := s.RemoveQueuedSave(ctx, ids[1]); err != nil {
		t.Fatalf("RemoveQueuedSave: %v", err)
	}
	if err := s.RemoveQueuedForDocument(ctx, "c"); err != nil {
		t.Fatalf("RemoveQueuedForDocument: %v", err)
	}

	saves, err := s.QueuedSaves(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(saves) != 1 || saves[0].DocumentID != "a" {
		t.Errorf("remaining queue = %+v, want only document a", saves)
	}
}

func TestStore_BumpRetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save := domain.NewQueuedSave("doc1", "ms1", "content", 1)
	if err := s.EnqueueSave(ctx, save); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.BumpRetry(ctx, save.ID); err != nil {
			t.Fatalf("BumpRetry: %v", err)
		}
	}

	saves, _ := s.QueuedSaves(ctx)
	if len(saves) != 1 || saves[0].RetryCount != 3 {
		t.Errorf("saves = %+v, want one entry with retry_count 3", saves)
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := domain.DraftRecord{
		ID: "doc1", DocumentID: "doc1", ParentID: "ms1",
		Content: "x", LastModified: time.Now(),
	}
	if err := s.SaveDraft(ctx, record); err != nil {
		t.Fatal(err)
	}
	if err := s.EnqueueSave(ctx, domain.NewQueuedSave("doc1", "ms1", "x", 1)); err != nil {
		t.Fatal(err)
	}

	if err := s.ClearDrafts(ctx); err != nil {
		t.Fatalf("ClearDrafts: %v", err)
	}
	if err := s.ClearQueue(ctx); err != nil {
		t.Fatalf("ClearQueue: %v", err)
	}

	if got, _ := s.Draft(ctx, "doc1"); got != nil {
		t.Error("draft survived ClearDrafts")
	}
	if saves, _ := s.QueuedSaves(ctx); len(saves) != 0 {
		t.Error("queue survived ClearQueue")
	}
}

func TestStore_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")
	ctx := context.Background()

	s := NewStore(path)
	record := domain.DraftRecord{
		ID: "doc1", DocumentID: "doc1", ParentID: "ms1",
		Content: "durable", LastModified: time.Now(),
	}
	if err := s.SaveDraft(ctx, record); err != nil {
		t.Fatal(err)
	}
	if err := s.EnqueueSave(ctx, domain.NewQueuedSave("doc1", "ms1", "durable", 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := NewStore(path)
	defer reopened.Close()

	got, err := reopened.Draft(ctx, "doc1")
	if err != nil || got == nil || got.Content != "durable" {
		t.Errorf("Draft after reopen = %+v, %v", got, err)
	}
	saves, err := reopened.QueuedSaves(ctx)
	if err != nil || len(saves) != 1 {
		t.Errorf("QueuedSaves after reopen = %+v, %v", saves, err)
	}
}

func TestStore_CloseWithoutUse(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "unused.db"))
	if err := s.Close(); err != nil {
		t.Errorf("Close on unused store: %v", err)
	}
}
