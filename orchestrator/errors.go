package orchestrator

import "errors"

var (
	// ErrGameOver is returned when a move is requested for a finished game.
	ErrGameOver = errors.New("game is over")

	// ErrStaleResult is returned when the board changed while the move was
	// being searched. The move is discarded.
	ErrStaleResult = errors.New("stale search result")

	// ErrBusy is returned when a computer move is already being computed.
	ErrBusy = errors.New("computer move already in progress")

	// ErrNoMove is returned when the engine reports no move for a position
	// the board considers playable.
	ErrNoMove = errors.New("no move available")
)
