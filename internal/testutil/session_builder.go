package testutil

import (
	"github.com/hupe1980/chessbridge/core"
)

// RecordBuilder helps construct game records with fluent chaining for tests.
// Example:
//
//	rec := NewRecordBuilder("g-1").Meta("white", "human").Events(ev1, ev2).Build()
type RecordBuilder struct {
	id     string
	meta   map[string]string
	events []core.Event
}

// NewRecordBuilder creates a new builder for a record with the given id.
func NewRecordBuilder(id string) *RecordBuilder {
	return &RecordBuilder{id: id, meta: map[string]string{}}
}

// Meta sets or overwrites a metadata key (chainable).
func (b *RecordBuilder) Meta(key, val string) *RecordBuilder {
	b.meta[key] = val
	return b
}

// Event appends a single event to the history (chainable).
func (b *RecordBuilder) Event(ev core.Event) *RecordBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events to the history (chainable).
func (b *RecordBuilder) Events(evs ...core.Event) *RecordBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a *core.GameRecord with the configured metadata and events.
func (b *RecordBuilder) Build() *core.GameRecord {
	r := core.NewGameRecord(b.id)
	for k, v := range b.meta {
		r.SetMetadata(k, v)
	}
	for _, ev := range b.events {
		r.AddEvent(ev)
	}
	return r
}
