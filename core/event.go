package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the notifications published by the orchestrator.
type EventKind string

const (
	// KindMoveApplied is published after a computer move was applied to the board.
	KindMoveApplied EventKind = "move_applied"
	// KindComputerThinking is published when an engine search starts or ends.
	KindComputerThinking EventKind = "computer_thinking"
	// KindSearchFailed is published when no computer move could be produced.
	KindSearchFailed EventKind = "search_failed"
	// KindHintReady is published when a suggested move is available. The
	// move is not applied.
	KindHintReady EventKind = "hint_ready"
)

// Event is the unit of notification exposed to the UI / controller layer.
// After publication it should be treated as immutable. Only the fields
// relevant to Kind are populated:
//   - MoveApplied: Move, SAN, Source, Position
//   - ComputerThinking: Thinking
//   - SearchFailed: Reason
//   - HintReady: Move, SAN, Source, Position (before the move)
type Event struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id,omitempty"`
	Kind      EventKind  `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`
	Move      string     `json:"move,omitempty"`
	SAN       string     `json:"san,omitempty"`
	Source    MoveSource `json:"source,omitempty"`
	Position  string     `json:"position,omitempty"`
	Thinking  bool       `json:"thinking,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// NewEvent creates a bare event of the given kind bound to a game session.
// Prefer the typed constructors below.
func NewEvent(sessionID string, kind EventKind) Event {
	return Event{
		ID:        NewID(),
		SessionID: sessionID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// NewMoveAppliedEvent reports a move (UCI and SAN) played from source, with
// fen being the position after the move.
func NewMoveAppliedEvent(sessionID, move, san string, source MoveSource, fen string) Event {
	e := NewEvent(sessionID, KindMoveApplied)
	e.Move = move
	e.SAN = san
	e.Source = source
	e.Position = fen
	return e
}

// NewComputerThinkingEvent reports the start (true) or end (false) of an engine search.
func NewComputerThinkingEvent(sessionID string, thinking bool) Event {
	e := NewEvent(sessionID, KindComputerThinking)
	e.Thinking = thinking
	return e
}

// NewSearchFailedEvent reports a human readable failure reason.
func NewSearchFailedEvent(sessionID, reason string) Event {
	e := NewEvent(sessionID, KindSearchFailed)
	e.Reason = reason
	return e
}

// NewHintReadyEvent reports a suggested move for the position fen.
func NewHintReadyEvent(sessionID, move, san string, source MoveSource, fen string) Event {
	e := NewEvent(sessionID, KindHintReady)
	e.Move = move
	e.SAN = san
	e.Source = source
	e.Position = fen
	return e
}

// NewID generates a new unique identifier for events, requests and sessions.
func NewID() string { return uuid.NewString() }
