package engine

import (
	"context"
	"sync"
)

// Dispatcher decides where completion callbacks run. Callers that must
// observe results on a particular goroutine (a UI loop, for instance) use a
// QueueDispatcher and drain it from that goroutine.
type Dispatcher interface {
	Dispatch(fn func())
}

// DirectDispatcher runs callbacks on the goroutine that completed the
// request: the scheduler for results, a timer for timeouts, or the caller
// of Cancel and Stop.
type DirectDispatcher struct{}

// Dispatch runs fn immediately.
func (DirectDispatcher) Dispatch(fn func()) { fn() }

// GoDispatcher runs each callback on its own goroutine.
type GoDispatcher struct{}

// Dispatch runs fn in a new goroutine.
func (GoDispatcher) Dispatch(fn func()) { go fn() }

// QueueDispatcher hands callbacks to whichever goroutine drains it.
type QueueDispatcher struct {
	ch        chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueueDispatcher creates a queue with the given buffer size.
func NewQueueDispatcher(buffer int) *QueueDispatcher {
	return &QueueDispatcher{ch: make(chan func(), buffer), done: make(chan struct{})}
}

// Dispatch enqueues fn. It never blocks the completing goroutine: when the
// buffer is full the hand-off continues in the background until a reader
// takes it or the queue is closed. After Close, fn is dropped.
func (q *QueueDispatcher) Dispatch(fn func()) {
	select {
	case <-q.done:
		return
	default:
	}
	select {
	case q.ch <- fn:
	default:
		go func() {
			select {
			case q.ch <- fn:
			case <-q.done:
			}
		}()
	}
}

// Close stops accepting callbacks and releases pending background
// hand-offs. Callbacks already buffered can still be drained. It is safe to
// call more than once.
func (q *QueueDispatcher) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// C exposes the queue for use in a caller's select loop.
func (q *QueueDispatcher) C() <-chan func() { return q.ch }

// Run executes callbacks until ctx is done.
func (q *QueueDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-q.ch:
			fn()
		}
	}
}

// Drain runs the callbacks that are already queued and returns how many ran.
func (q *QueueDispatcher) Drain() int {
	n := 0
	for {
		select {
		case fn := <-q.ch:
			fn()
			n++
		default:
			return n
		}
	}
}
