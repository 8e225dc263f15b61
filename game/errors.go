package game

import (
	"errors"
	"fmt"

	"github.com/hupe1980/chessbridge/core"
)

var (
	// ErrNotComputerTurn is returned when a computer move is requested while
	// a human is to move.
	ErrNotComputerTurn = errors.New("not a computer turn")

	// ErrNotHumanTurn is returned when a player tries to move for a side
	// the engine plays.
	ErrNotHumanTurn = errors.New("not a human turn")

	// ErrNoDifficulty is returned by DifficultyFor when the side is not
	// computer controlled.
	ErrNoDifficulty = errors.New("no difficulty for side")

	// ErrMissingDifficulty is returned when a computer side has no profile.
	ErrMissingDifficulty = errors.New("missing difficulty")

	// ErrInvalidColor is returned when the human color is neither white nor black.
	ErrInvalidColor = errors.New("invalid human color")

	// ErrInvalidMode is returned for an unknown game mode.
	ErrInvalidMode = errors.New("invalid game mode")
)

// ModeError reports a request that does not fit the session's game mode.
// It is raised before any engine interaction.
type ModeError struct {
	Mode core.GameMode
	Err  error
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("mode %s: %v", e.Mode, e.Err)
}

func (e *ModeError) Unwrap() error { return e.Err }
