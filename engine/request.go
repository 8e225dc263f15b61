package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/notnil/chess"
)

// Outcome is the result delivered for one search request. A nil Move with a
// nil Err means the position had no legal moves.
type Outcome struct {
	ID   string
	Move *chess.Move
	Err  error
}

// NoMove reports whether the search ended without a move and without error.
func (o Outcome) NoMove() bool { return o.Move == nil && o.Err == nil }

// Cancelled reports whether the request was cancelled.
func (o Outcome) Cancelled() bool { return errors.Is(o.Err, ErrCancelled) }

// request is owned by the worker from submission until complete fires.
type request struct {
	id         string
	pos        *chess.Position
	limit      Limit
	onDone     func(Outcome)
	dispatcher Dispatcher
	registry   *registry

	once    sync.Once
	done    chan struct{}
	outcome Outcome
	timer   *time.Timer
	timerMu sync.Mutex
}

func newRequest(id string, pos *chess.Position, limit Limit, onDone func(Outcome), d Dispatcher, reg *registry) *request {
	return &request{
		id:         id,
		pos:        pos,
		limit:      limit,
		onDone:     onDone,
		dispatcher: d,
		registry:   reg,
		done:       make(chan struct{}),
	}
}

// arm starts the adaptive deadline for the request.
func (r *request) arm(timeout time.Duration) {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.isDone() {
		return
	}
	r.timer = time.AfterFunc(timeout, func() {
		r.complete(Outcome{Err: &SearchError{Op: "search", Timeout: timeout, Err: ErrSearchTimeout}})
	})
}

// complete records o as the request's outcome. Only the first call has an
// effect; it reports whether this call was the one that completed the
// request.
func (r *request) complete(o Outcome) bool {
	fired := false
	r.once.Do(func() {
		fired = true
		o.ID = r.id
		r.outcome = o
		close(r.done)
	})
	if !fired {
		return false
	}

	r.timerMu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timerMu.Unlock()

	if r.registry != nil {
		r.registry.remove(r.id)
	}
	if r.onDone != nil {
		r.dispatcher.Dispatch(func() { r.onDone(o) })
	}
	return true
}

func (r *request) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Handle tracks an asynchronous search.
type Handle struct {
	req *request
}

// ID returns the request identifier.
func (h *Handle) ID() string { return h.req.id }

// Cancel abandons the request. The callback receives ErrCancelled unless a
// result was already delivered; it reports whether this call cancelled it.
func (h *Handle) Cancel() bool {
	return h.req.complete(Outcome{Err: ErrCancelled})
}

// Done is closed once the outcome is known.
func (h *Handle) Done() <-chan struct{} { return h.req.done }

// Outcome returns the outcome if the request has completed.
func (h *Handle) Outcome() (Outcome, bool) {
	if !h.req.isDone() {
		return Outcome{}, false
	}
	return h.req.outcome, true
}

// Wait blocks until the request completes or ctx is done. An expired ctx
// does not cancel the request.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.req.done:
		return h.req.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
