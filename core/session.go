package core

import (
	"sync"
	"time"
)

// GameRecord is the event history of one game session. It is safe for
// concurrent access.
//
// Contract:
//   - AddEvent updates the Updated timestamp
//   - GetEvents returns a defensive copy to avoid external mutation
//   - Moves filters the history to applied moves in play order
//   - Clone performs deep copies of maps/slices for safe divergence.
type GameRecord struct {
	ID       string            `json:"id"`
	Events   []Event           `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewGameRecord creates an empty record with the given ID.
func NewGameRecord(id string) *GameRecord {
	now := time.Now()
	return &GameRecord{ID: id, Events: []Event{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// AddEvent appends an event to the history updating Updated timestamp.
func (r *GameRecord) AddEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
	r.Updated = time.Now()
}

// SetMetadata stores a key/value pair.
func (r *GameRecord) SetMetadata(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Metadata[key] = value
	r.Updated = time.Now()
}

// GetEvents returns a defensive copy of the full event slice.
func (r *GameRecord) GetEvents() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]Event, len(r.Events))
	copy(events, r.Events)
	return events
}

// Moves returns the MoveApplied events in the order they were recorded.
func (r *GameRecord) Moves() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Event, 0, len(r.Events))
	for _, ev := range r.Events {
		if ev.Kind == KindMoveApplied {
			res = append(res, ev)
		}
	}
	return res
}

// Clone returns a deep copy of the record safe for independent mutation.
func (r *GameRecord) Clone() *GameRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &GameRecord{ID: r.ID, Events: make([]Event, len(r.Events)), Created: r.Created, Updated: r.Updated, Metadata: make(map[string]string, len(r.Metadata))}
	copy(clone.Events, r.Events)
	for k, v := range r.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore persists game records keyed by session ID.
type SessionStore interface {
	Create(id string) (*GameRecord, error)
	Get(id string) (*GameRecord, error)
	AppendEvent(sessionID string, event Event) error
}
