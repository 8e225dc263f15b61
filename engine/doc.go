// Package engine drives an external UCI chess engine as a managed subprocess.
//
// A Worker owns exactly one engine process. It brings the process up with the
// UCI handshake, serializes every search through a single scheduler
// goroutine, enforces an adaptive deadline on each request and tears the
// process down on Stop, whatever state it is in.
//
// # Lifecycle
//
//	Stopped ──Start──▶ Starting ──handshake ok──▶ Running
//	   ▲                  │                          │
//	   └──────failure─────┘                         Stop
//	   ▲                                             ▼
//	   └───────────────────────────────────── ShuttingDown
//
// Start is idempotent while Running. A failed Start returns a *StartupError
// whose Reason is one of ErrEngineNotFound, ErrPermissionDenied,
// ErrHandshakeTimeout or ErrProcessExited, and leaves the worker Stopped.
//
// # Searching
//
// SearchMove blocks the caller; SearchMoveAsync returns a Handle and
// delivers an Outcome exactly once through the configured Dispatcher:
//
//	h, err := w.SearchMoveAsync(pos, engine.Limit{Time: 500 * time.Millisecond}, func(o engine.Outcome) {
//	    if o.Err != nil {
//	        log.Printf("search failed: %v", o.Err)
//	        return
//	    }
//	    fmt.Println("best move:", o.Move)
//	})
//
// Every request is tracked in a registry until it completes. The deadline
// for a request is AdaptiveTimeout(limit.Time):
//
//	base   = max(budget, 1s)
//	buffer = min(base/2, 10s)
//	total  = base + buffer + 5s
//
// A terminal position never reaches the engine and completes with no move.
// Moves returned by the engine are checked for legality before they are
// delivered.
//
// # Engine discovery
//
// Detect looks for a Stockfish-compatible binary in a configured directory,
// on PATH and in platform specific install locations.
package engine
