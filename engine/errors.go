package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotRunning is returned when a search is submitted to a worker that
	// has not been started or has been stopped.
	ErrNotRunning = errors.New("engine worker is not running")

	// ErrEngineNotFound is returned when the engine executable does not exist.
	ErrEngineNotFound = errors.New("engine executable not found")

	// ErrPermissionDenied is returned when the engine executable cannot be run.
	ErrPermissionDenied = errors.New("engine executable permission denied")

	// ErrHandshakeTimeout is returned when the engine does not finish the UCI
	// handshake in time.
	ErrHandshakeTimeout = errors.New("engine handshake timed out")

	// ErrProcessExited is returned when the engine process terminated while a
	// reply was expected.
	ErrProcessExited = errors.New("engine process exited")

	// ErrSearchTimeout is returned when no result arrived before the adaptive
	// deadline.
	ErrSearchTimeout = errors.New("engine search timed out")

	// ErrIllegalMove is returned when the engine answers with a move that is
	// not legal in the searched position.
	ErrIllegalMove = errors.New("engine returned an illegal move")

	// ErrNoResult is returned when the engine reports no best move for a
	// position that still has legal moves.
	ErrNoResult = errors.New("engine returned no move")

	// ErrCancelled is delivered to requests that were cancelled before a
	// result was accepted.
	ErrCancelled = errors.New("search cancelled")

	// ErrOptionRejected marks a configuration option the engine does not
	// support or whose value is out of range. It is never fatal.
	ErrOptionRejected = errors.New("engine option rejected")
)

// StartupError is returned by Start when the worker could not be brought up.
// The worker is back in the Stopped state when it is returned.
type StartupError struct {
	Path   string
	Reason error
	Err    error
}

func (e *StartupError) Error() string {
	if e.Err != nil && e.Err != e.Reason {
		return fmt.Sprintf("engine startup failed for %s: %v: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("engine startup failed for %s: %v", e.Path, e.Reason)
}

// Unwrap exposes both the classified reason and the underlying cause.
func (e *StartupError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// SearchError describes a failed search.
type SearchError struct {
	Op      string
	Move    string
	Timeout time.Duration
	Err     error
}

func (e *SearchError) Error() string {
	switch {
	case e.Timeout > 0:
		return fmt.Sprintf("%s failed: %v after %dms", e.Op, e.Err, e.Timeout.Milliseconds())
	case e.Move != "":
		return fmt.Sprintf("%s failed: %v: %s", e.Op, e.Err, e.Move)
	default:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
}

func (e *SearchError) Unwrap() error { return e.Err }
