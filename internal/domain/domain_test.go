package domain

import (
	"strings"
	"testing"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"it was a dark and stormy night", 7},
		{"line\nbreaks\tand   runs  of spaces", 6},
	}
	for _, tt := range tests {
		if got := WordCount(tt.content); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestConflictDraftID(t *testing.T) {
	id := ConflictDraftID("doc1")
	if !strings.HasPrefix(id, "doc1.conflict.") {
		t.Errorf("id = %q, want doc1.conflict.* prefix", id)
	}

	// Repeated conflicts for one document must not collide.
	if other := ConflictDraftID("doc1"); other == id {
		t.Error("two conflict ids for the same document collided")
	}
}

func TestNewQueuedSave(t *testing.T) {
	save := NewQueuedSave("doc1", "ms1", "content", 1)

	if save.DocumentID != "doc1" || save.ParentID != "ms1" {
		t.Errorf("save = %+v", save)
	}
	if !strings.HasPrefix(save.ID, "doc1:") {
		t.Errorf("ID = %q, want doc1:<nanos>", save.ID)
	}
	if save.Timestamp.IsZero() {
		t.Error("Timestamp not stamped")
	}
	if save.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", save.RetryCount)
	}
}
