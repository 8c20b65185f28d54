package domain

import (
	"fmt"
	"time"
)

// QueuedSave is a save deferred to the replay queue because it could not be
// confirmed against the remote store. The Sync Replayer drains these once
// connectivity returns.
type QueuedSave struct {
	// ID is unique per enqueue event, derived from the document id and the
	// enqueue time.
	ID string

	// DocumentID is the target document.
	DocumentID string

	// ParentID is carried so replay failures can escrow a conflict draft
	// under the right grouping key.
	ParentID string

	// Content is the content to replay.
	Content string

	// WordCount is the derived metric captured at enqueue time.
	WordCount int

	// Timestamp is the enqueue time.
	Timestamp time.Time

	// RetryCount is the number of failed replay attempts so far.
	RetryCount int
}

// NewQueuedSave builds a QueuedSave for the given document and content,
// stamping it with the current time.
func NewQueuedSave(documentID, parentID, content string, wordCount int) QueuedSave {
	now := time.Now()
	return QueuedSave{
		ID:         fmt.Sprintf("%s:%d", documentID, now.UnixNano()),
		DocumentID: documentID,
		ParentID:   parentID,
		Content:    content,
		WordCount:  wordCount,
		Timestamp:  now,
	}
}
