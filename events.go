package draftsync

import "github.com/ottopen/draftsync/internal/app"

// SaveOutcome classifies the result of a save attempt.
// A UI can derive its save indicator ("saved", "saving",
// "saved offline — will sync", "save failed") from these.
type SaveOutcome = app.SaveOutcome

// Save outcomes, re-exported for callers of the facade.
const (
	SaveNoop       = app.SaveNoop
	SaveRemote     = app.SaveRemote
	SaveLocal      = app.SaveLocal
	SaveConflict   = app.SaveConflict
	SaveSuperseded = app.SaveSuperseded
	SaveFailed     = app.SaveFailed
)

// State represents the lifecycle state of a Manager.
type State = app.State

// Lifecycle states, re-exported for callers of the facade.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// EventHandler receives Manager events. All methods are called synchronously
// from the goroutine that produced the event; implementations should return
// quickly. Any method may be a no-op.
type EventHandler interface {
	// OnSaveAttempt fires after every completed save attempt for a tracked
	// document. A SaveLocal outcome with a non-nil err means a remote
	// failure was recovered by the local fallback.
	OnSaveAttempt(documentID string, outcome SaveOutcome, err error)

	// OnReplayed fires when a queued save was confirmed remotely.
	OnReplayed(documentID string)

	// OnReplayFailed fires when replaying a queued save failed.
	OnReplayFailed(documentID string, err error)

	// OnStateChange fires on lifecycle transitions.
	OnStateChange(previous, current State, reason string)
}

// eventEmitter adapts an optional EventHandler to the internal observer
// interfaces. A nil handler turns every event into a no-op.
type eventEmitter struct {
	handler EventHandler
}

func (e *eventEmitter) OnSaveAttempt(documentID string, outcome app.SaveOutcome, err error) {
	if e.handler != nil {
		e.handler.OnSaveAttempt(documentID, outcome, err)
	}
}

func (e *eventEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler != nil {
		e.handler.OnStateChange(previous, current, reason)
	}
}

func (e *eventEmitter) onReplayed(documentID string) {
	if e.handler != nil {
		e.handler.OnReplayed(documentID)
	}
}

func (e *eventEmitter) onReplayFailed(documentID string, err error) {
	if e.handler != nil {
		e.handler.OnReplayFailed(documentID, err)
	}
}
