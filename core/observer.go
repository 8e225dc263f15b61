package core

import (
	"slices"
	"sync"

	"github.com/hupe1980/chessbridge/logging"
)

// Observer receives published events. Implementations must not block for
// long: OnEvent runs on the publishing goroutine.
type Observer interface {
	OnEvent(ev Event)
}

// ObserverFunc adapts an ordinary function to the Observer interface.
type ObserverFunc func(ev Event)

// OnEvent calls f(ev).
func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

// Publisher fans events out to the observers subscribed at publish time.
// It is safe for concurrent use. A panicking observer is recovered and
// logged so it cannot take down the publishing goroutine.
type Publisher struct {
	mu        sync.RWMutex
	observers map[uint64]Observer
	nextID    uint64
	logger    logging.Logger
}

// NewPublisher creates a publisher. A nil logger is replaced by a NoOpLogger.
func NewPublisher(logger logging.Logger) *Publisher {
	return &Publisher{
		observers: make(map[uint64]Observer),
		logger:    logging.OrNoOp(logger),
	}
}

// Subscribe registers o and returns a function that removes it again.
func (p *Publisher) Subscribe(o Observer) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = o
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.observers, id)
			p.mu.Unlock()
		})
	}
}

// Channel subscribes a buffered channel. Delivery never blocks the
// publisher: when the buffer is full the event is dropped and logged.
// cancel unsubscribes and closes the channel.
func (p *Publisher) Channel(buffer int) (<-chan Event, func()) {
	cs := &chanSubscriber{ch: make(chan Event, buffer), logger: p.logger}
	unsubscribe := p.Subscribe(cs)
	return cs.ch, func() {
		unsubscribe()
		cs.close()
	}
}

// Publish delivers ev to every current observer in subscription order.
func (p *Publisher) Publish(ev Event) {
	p.mu.RLock()
	ids := make([]uint64, 0, len(p.observers))
	snapshot := make(map[uint64]Observer, len(p.observers))
	for id, o := range p.observers {
		ids = append(ids, id)
		snapshot[id] = o
	}
	p.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		p.deliver(snapshot[id], ev)
	}
}

// Len returns the number of subscribed observers.
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.observers)
}

func (p *Publisher) deliver(o Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("observer panicked", "event_id", ev.ID, "kind", string(ev.Kind), "panic", r)
		}
	}()
	o.OnEvent(ev)
}

type chanSubscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
	logger logging.Logger
}

func (c *chanSubscriber) OnEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- ev:
	default:
		c.logger.Warn("event subscriber full, dropping event", "event_id", ev.ID, "kind", string(ev.Kind))
	}
}

func (c *chanSubscriber) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
