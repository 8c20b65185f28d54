// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the application core and the outside
// world. They define what the save pipeline needs from external systems
// without specifying how those needs are fulfilled.
//
// # Port Interfaces
//
//   - [DocumentStore]: Reads and updates documents in the remote store
//   - [DraftStore]: Persists drafts and the offline replay queue locally
//   - [Connectivity]: Reports online/offline status and transitions
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// implementations (HTTP, SQLite, fsnotify, zerolog).
//
// This separation enables:
//   - Testing coordinator and replayer logic with fake implementations
//   - Swapping infrastructure without changing save semantics
//   - Clear boundaries and dependency direction
package ports
