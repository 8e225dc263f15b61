package engine

import "sync"

// registry tracks in-flight requests so Stop can cancel all of them.
type registry struct {
	mu       sync.Mutex
	requests map[string]*request
}

func newRegistry() *registry {
	return &registry{requests: make(map[string]*request)}
}

func (r *registry) add(req *request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.id] = req
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, id)
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// cancelAll completes every tracked request with err and returns how many
// were still pending. Callbacks run outside the registry lock.
func (r *registry) cancelAll(err error) int {
	r.mu.Lock()
	pending := make([]*request, 0, len(r.requests))
	for _, req := range r.requests {
		pending = append(pending, req)
	}
	r.mu.Unlock()

	n := 0
	for _, req := range pending {
		if req.complete(Outcome{Err: err}) {
			n++
		}
	}
	return n
}
