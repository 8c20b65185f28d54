// Package http implements ports.DocumentStore against an HTTP/JSON
// document API.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ottopen/draftsync/internal/domain"
	"github.com/ottopen/draftsync/internal/ports"
)

const documentsEndpoint = "/v1/documents/"

// Metadata provides request context for every call to the document service.
// The values are sent as HTTP headers for server-side tracking.
type Metadata struct {
	// ServiceURL is the base URL of the document service, without a
	// trailing slash.
	ServiceURL string

	// AuthKey is the API authentication key.
	AuthKey string

	// ClientID identifies this editor session or device.
	ClientID string

	// Hostname is the client's hostname.
	Hostname string
}

// DocumentStore implements ports.DocumentStore over HTTP.
type DocumentStore struct {
	client ports.HTTPClient
	meta   Metadata
	logger ports.Logger
}

// NewDocumentStore creates an HTTP document store.
func NewDocumentStore(client ports.HTTPClient, meta Metadata, logger ports.Logger) *DocumentStore {
	return &DocumentStore{
		client: client,
		meta:   meta,
		logger: logger,
	}
}

// documentPayload is the wire representation of a document.
type documentPayload struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id"`
	Content   string    `json:"content"`
	WordCount int       `json:"word_count"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// updatePayload is the body of an update request.
type updatePayload struct {
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// GetByID fetches the current remote state of a document.
// A 404 response means the document no longer exists and returns (nil, nil);
// transport and server failures return a non-nil error.
func (s *DocumentStore) GetByID(ctx context.Context, documentID string) (*domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.documentURL(documentID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var payload documentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return payload.toDomain(), nil
}

// Update writes new content and its word count to the remote document.
// Returns domain.ErrDocumentVanished when the server reports the document
// gone, so callers can escrow the content instead of retrying.
func (s *DocumentStore) Update(ctx context.Context, documentID string, content string, wordCount int) (*domain.Document, error) {
	body, err := json.Marshal(updatePayload{Content: content, WordCount: wordCount})
	if err != nil {
		return nil, fmt.Errorf("marshal update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.documentURL(documentID), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, domain.ErrDocumentVanished
	}
	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var payload documentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode updated document: %w", err)
	}
	return payload.toDomain(), nil
}

func (s *DocumentStore) documentURL(documentID string) string {
	return s.meta.ServiceURL + documentsEndpoint + url.PathEscape(documentID)
}

func (s *DocumentStore) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.meta.AuthKey)
	req.Header.Set("X-Client-Id", s.meta.ClientID)
	req.Header.Set("X-Client-Hostname", s.meta.Hostname)
}

func (p documentPayload) toDomain() *domain.Document {
	return &domain.Document{
		ID:        p.ID,
		ParentID:  p.ParentID,
		Content:   p.Content,
		WordCount: p.WordCount,
		Version:   p.Version,
		UpdatedAt: p.UpdatedAt,
	}
}
