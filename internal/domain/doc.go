// Package domain contains the core domain entities and value objects for
// draftsync.
//
// This package represents the innermost layer of the architecture. It has no
// dependencies on infrastructure concerns (HTTP, SQLite, logging) and
// contains only pure data and business rules.
//
// # Entities
//
//   - [Document]: A remote document as the Remote Document Store reports it
//   - [DraftRecord]: A locally persisted snapshot of unsaved content
//   - [QueuedSave]: A save deferred to the replay queue while offline
//
// # Design Principles
//
// Domain entities are:
//   - Free of infrastructure dependencies
//   - Focused on invariants, not transport
//   - Testable without mocks or external systems
package domain
