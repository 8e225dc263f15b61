package core

import (
	"errors"

	"github.com/notnil/chess"
)

// ErrPositionChanged is returned by a ConditionalApplier when the board no
// longer holds the expected position.
var ErrPositionChanged = errors.New("position changed")

// Board is the authoritative game position as seen by the orchestrator. The
// rules themselves (move generation, mate and draw detection) live behind
// this interface; nothing in chessbridge re-implements them.
type Board interface {
	// Position returns a snapshot of the current position.
	Position() *chess.Position
	// SideToMove returns the color whose turn it is.
	SideToMove() chess.Color
	// IsLegal reports whether m is legal in the current position.
	IsLegal(m *chess.Move) bool
	// IsTerminal reports whether the game is over.
	IsTerminal() bool
	// Apply plays m. It fails without side effects if m is illegal.
	Apply(m *chess.Move) error
}

// ConditionalApplier is implemented by boards that can apply a move only if
// the position still matches an expected FEN, as one atomic step.
type ConditionalApplier interface {
	CompareAndApply(expectedFEN string, m *chess.Move) error
}
