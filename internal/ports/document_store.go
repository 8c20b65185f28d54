package ports

import (
	"context"

	"github.com/ottopen/draftsync/internal/domain"
)

// DocumentStore provides access to documents in the remote store.
// Implementations handle serialization, transport and authentication.
type DocumentStore interface {
	// GetByID fetches the current remote state of a document.
	// Returns (nil, nil) when the document no longer exists; this is
	// distinct from a transport failure, which returns a non-nil error.
	GetByID(ctx context.Context, documentID string) (*domain.Document, error)

	// Update writes new content and its derived word count to the remote
	// document and returns the stored result.
	Update(ctx context.Context, documentID string, content string, wordCount int) (*domain.Document, error)
}
