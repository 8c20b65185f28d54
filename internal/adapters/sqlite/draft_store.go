// Package sqlite implements ports.DraftStore on an embedded SQLite database.
//
// The store is crash-safe and fully usable while the remote store is
// unreachable. Initialization is lazy and idempotent: the first operation
// opens the database and creates the schema.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ottopen/draftsync/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
    id            TEXT PRIMARY KEY,
    document_id   TEXT NOT NULL,
    parent_id     TEXT NOT NULL,
    content       TEXT NOT NULL,
    last_modified INTEGER NOT NULL,
    offline_draft INTEGER NOT NULL DEFAULT 0,
    conflict      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_drafts_parent   ON drafts(parent_id);
CREATE INDEX IF NOT EXISTS idx_drafts_modified ON drafts(last_modified);

CREATE TABLE IF NOT EXISTS save_queue (
    id          TEXT PRIMARY KEY,
    document_id TEXT NOT NULL UNIQUE,
    parent_id   TEXT NOT NULL,
    content     TEXT NOT NULL,
    word_count  INTEGER NOT NULL,
    enqueued_at INTEGER NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0
);
`

// Store is a ports.DraftStore backed by a single SQLite file.
type Store struct {
	path string

	once    sync.Once
	conn    *sql.DB
	initErr error
}

// NewStore creates a Store for the given database path. The file and schema
// are created on first use. Use ":memory:" for an ephemeral store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// db opens the database and applies the schema exactly once.
func (s *Store) db() (*sql.DB, error) {
	s.once.Do(func() {
		conn, err := sql.Open("sqlite3", s.path+"?_busy_timeout=5000")
		if err != nil {
			s.initErr = fmt.Errorf("open draft store: %w", err)
			return
		}
		// A single writer keeps record-level operations atomic without
		// cross-connection lock contention.
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec(schema); err != nil {
			conn.Close()
			s.initErr = fmt.Errorf("init draft store schema: %w", err)
			return
		}
		s.conn = conn
	})
	return s.conn, s.initErr
}

// SaveDraft upserts a draft by ID.
func (s *Store) SaveDraft(ctx context.Context, record domain.DraftRecord) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO drafts (id, document_id, parent_id, content, last_modified, offline_draft, conflict)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id   = excluded.document_id,
			parent_id     = excluded.parent_id,
			content       = excluded.content,
			last_modified = excluded.last_modified,
			offline_draft = excluded.offline_draft,
			conflict      = excluded.conflict`,
		record.ID, record.DocumentID, record.ParentID, record.Content,
		record.LastModified.UnixNano(), boolInt(record.OfflineDraft), boolInt(record.Conflict),
	)
	if err != nil {
		return fmt.Errorf("save draft %s: %w", record.ID, err)
	}
	return nil
}

// Draft returns the draft with the given ID, or (nil, nil) if absent.
func (s *Store) Draft(ctx context.Context, id string) (*domain.DraftRecord, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, `
		SELECT id, document_id, parent_id, content, last_modified, offline_draft, conflict
		FROM drafts WHERE id = ?`, id)

	record, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	return record, nil
}

// DraftsForParent returns all drafts under one parent, most recently
// modified first.
func (s *Store) DraftsForParent(ctx context.Context, parentID string) ([]domain.DraftRecord, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `
		SELECT id, document_id, parent_id, content, last_modified, offline_draft, conflict
		FROM drafts WHERE parent_id = ?
		ORDER BY last_modified DESC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list drafts for %s: %w", parentID, err)
	}
	defer rows.Close()

	var records []domain.DraftRecord
	for rows.Next() {
		record, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// DeleteDraft removes a draft by ID. Absent drafts are not an error.
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return nil
}

// EnqueueSave records a save for later replay. Entries coalesce to one per
// document: newer content replaces the queued content while the original
// enqueue position and ID are kept, so a long offline session cannot grow
// the queue without bound. The retry counter resets for the new content.
func (s *Store) EnqueueSave(ctx context.Context, save domain.QueuedSave) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO save_queue (id, document_id, parent_id, content, word_count, enqueued_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			content     = excluded.content,
			word_count  = excluded.word_count,
			retry_count = 0`,
		save.ID, save.DocumentID, save.ParentID, save.Content,
		save.WordCount, save.Timestamp.UnixNano(), save.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("enqueue save for %s: %w", save.DocumentID, err)
	}
	return nil
}

// QueuedSaves lists all queued saves, oldest first.
func (s *Store) QueuedSaves(ctx context.Context) ([]domain.QueuedSave, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `
		SELECT id, document_id, parent_id, content, word_count, enqueued_at, retry_count
		FROM save_queue ORDER BY enqueued_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list queued saves: %w", err)
	}
	defer rows.Close()

	var saves []domain.QueuedSave
	for rows.Next() {
		var save domain.QueuedSave
		var enqueuedAt int64
		if err := rows.Scan(&save.ID, &save.DocumentID, &save.ParentID,
			&save.Content, &save.WordCount, &enqueuedAt, &save.RetryCount); err != nil {
			return nil, fmt.Errorf("scan queued save: %w", err)
		}
		save.Timestamp = time.Unix(0, enqueuedAt)
		saves = append(saves, save)
	}
	return saves, rows.Err()
}

// RemoveQueuedSave removes a queue entry by ID.
func (s *Store) RemoveQueuedSave(ctx context.Context, id string) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM save_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove queued save %s: %w", id, err)
	}
	return nil
}

// RemoveQueuedForDocument removes the queued save targeting a document.
func (s *Store) RemoveQueuedForDocument(ctx context.Context, documentID string) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM save_queue WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("remove queued save for %s: %w", documentID, err)
	}
	return nil
}

// BumpRetry increments the retry counter of a queue entry.
func (s *Store) BumpRetry(ctx context.Context, id string) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `
		UPDATE save_queue SET retry_count = retry_count + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("bump retry for %s: %w", id, err)
	}
	return nil
}

// ClearDrafts removes all drafts.
func (s *Store) ClearDrafts(ctx context.Context) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM drafts`); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	return nil
}

// ClearQueue removes all queued saves.
func (s *Store) ClearQueue(ctx context.Context) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM save_queue`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// Close releases the database handle. A store that was never used closes
// without opening the database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*domain.DraftRecord, error) {
	var record domain.DraftRecord
	var lastModified int64
	var offline, conflict int
	if err := row.Scan(&record.ID, &record.DocumentID, &record.ParentID,
		&record.Content, &lastModified, &offline, &conflict); err != nil {
		return nil, err
	}
	record.LastModified = time.Unix(0, lastModified)
	record.OfflineDraft = offline != 0
	record.Conflict = conflict != 0
	return &record, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
