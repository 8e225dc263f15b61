package session

import (
	"sync"

	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/logging"
)

// InMemoryStore is a volatile SessionStore implementation storing game
// records in a process local map. It is safe for concurrent access. Each
// returned record is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*core.GameRecord
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*core.GameRecord)}
}

// Get returns an existing record (clone) or creates a new one lazily.
func (s *InMemoryStore) Get(sessionID string) (*core.GameRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[sessionID]
	s.mu.RUnlock()
	if ok {
		return rec.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[sessionID]; ok {
		return rec.Clone(), nil
	}
	return s.createLocked(sessionID).Clone(), nil
}

// Create forces the creation (or overwriting) of a record with the given id.
func (s *InMemoryStore) Create(sessionID string) (*core.GameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(sessionID).Clone(), nil
}

// AppendEvent adds an event to an existing or newly created record.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionID]
	if !ok {
		rec = s.createLocked(sessionID)
	}
	rec.AddEvent(ev)
	return nil
}

// Events returns the recorded events of a session, or nil if it is unknown.
func (s *InMemoryStore) Events(sessionID string) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[sessionID]; ok {
		return rec.GetEvents()
	}
	return nil
}

// IDs returns the ids of all stored sessions.
func (s *InMemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}

// createLocked allocates and stores a new record; caller must already hold
// the write lock.
func (s *InMemoryStore) createLocked(sessionID string) *core.GameRecord {
	rec := core.NewGameRecord(sessionID)
	s.records[sessionID] = rec
	return rec
}

// Recorder returns an observer that appends every event to store. Events
// without a session id are ignored. Store failures are logged.
func Recorder(store core.SessionStore, logger logging.Logger) core.Observer {
	logger = logging.OrNoOp(logger)
	return core.ObserverFunc(func(ev core.Event) {
		if ev.SessionID == "" {
			return
		}
		if err := store.AppendEvent(ev.SessionID, ev); err != nil {
			logger.Error("failed to record event", "session_id", ev.SessionID, "event_id", ev.ID, "error", err)
		}
	})
}
