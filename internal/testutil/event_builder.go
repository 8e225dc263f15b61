package testutil

import (
	"time"

	"github.com/hupe1980/chessbridge/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Session("g-1").Move("e2e4", "e4").Source(core.SourceBook).Build()
//
// Chain only the parts you need; the kind defaults to MoveApplied.
type EventBuilder struct {
	ev core.Event
}

// NewEventBuilder creates a builder for a MoveApplied event.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{ev: core.NewEvent("", core.KindMoveApplied)}
}

// Session sets the session id (chainable).
func (b *EventBuilder) Session(id string) *EventBuilder { b.ev.SessionID = id; return b }

// ID overrides the generated event id (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.ev.ID = id; return b }

// At sets the timestamp (chainable).
func (b *EventBuilder) At(ts time.Time) *EventBuilder { b.ev.Timestamp = ts; return b }

// Move sets the kind to MoveApplied and records the move (chainable).
func (b *EventBuilder) Move(uci, san string) *EventBuilder {
	b.ev.Kind = core.KindMoveApplied
	b.ev.Move = uci
	b.ev.SAN = san
	return b
}

// Source sets where the move came from (chainable).
func (b *EventBuilder) Source(s core.MoveSource) *EventBuilder { b.ev.Source = s; return b }

// Position sets the FEN after the move (chainable).
func (b *EventBuilder) Position(fen string) *EventBuilder { b.ev.Position = fen; return b }

// Thinking turns the event into a ComputerThinking notification (chainable).
func (b *EventBuilder) Thinking(on bool) *EventBuilder {
	b.ev.Kind = core.KindComputerThinking
	b.ev.Thinking = on
	return b
}

// Failed turns the event into a SearchFailed notification (chainable).
func (b *EventBuilder) Failed(reason string) *EventBuilder {
	b.ev.Kind = core.KindSearchFailed
	b.ev.Reason = reason
	return b
}

// Build returns the event.
func (b *EventBuilder) Build() core.Event { return b.ev }
