package game

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/notnil/chess"

	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/difficulty"
)

// Config describes a game to be created.
//
// HumanVsComputer requires HumanColor and Difficulty. ComputerVsComputer
// requires WhiteDifficulty and BlackDifficulty. HumanVsHuman needs neither;
// any profiles given for a mode that does not use them are ignored.
type Config struct {
	ID         string
	Mode       core.GameMode
	HumanColor chess.Color

	Difficulty *difficulty.Profile

	WhiteDifficulty *difficulty.Profile
	BlackDifficulty *difficulty.Profile
}

// Session is an immutable, validated game configuration.
type Session struct {
	id         string
	mode       core.GameMode
	humanColor chess.Color
	single     difficulty.Profile
	white      difficulty.Profile
	black      difficulty.Profile
}

// NewSession validates cfg and returns the session. Every violation is a
// *ModeError.
func NewSession(cfg Config) (*Session, error) {
	s := &Session{id: cfg.ID, mode: cfg.Mode, humanColor: chess.NoColor}
	if s.id == "" {
		s.id = uuid.NewString()
	}

	fail := func(err error) (*Session, error) {
		return nil, &ModeError{Mode: cfg.Mode, Err: err}
	}

	switch cfg.Mode {
	case core.HumanVsHuman:
	case core.HumanVsComputer:
		if cfg.HumanColor != chess.White && cfg.HumanColor != chess.Black {
			return fail(ErrInvalidColor)
		}
		if cfg.Difficulty == nil {
			return fail(fmt.Errorf("%w: human vs computer needs a difficulty", ErrMissingDifficulty))
		}
		if err := cfg.Difficulty.Validate(); err != nil {
			return fail(err)
		}
		s.humanColor = cfg.HumanColor
		s.single = *cfg.Difficulty
	case core.ComputerVsComputer:
		if cfg.WhiteDifficulty == nil || cfg.BlackDifficulty == nil {
			return fail(fmt.Errorf("%w: computer vs computer needs a difficulty for both sides", ErrMissingDifficulty))
		}
		if err := cfg.WhiteDifficulty.Validate(); err != nil {
			return fail(fmt.Errorf("white: %w", err))
		}
		if err := cfg.BlackDifficulty.Validate(); err != nil {
			return fail(fmt.Errorf("black: %w", err))
		}
		s.white = *cfg.WhiteDifficulty
		s.black = *cfg.BlackDifficulty
	default:
		return fail(ErrInvalidMode)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the game mode.
func (s *Session) Mode() core.GameMode { return s.mode }

// HumanColor returns the human's color in HumanVsComputer and NoColor
// otherwise.
func (s *Session) HumanColor() chess.Color { return s.humanColor }

// ComputerColor returns the computer's color in HumanVsComputer and NoColor
// otherwise.
func (s *Session) ComputerColor() chess.Color {
	if s.mode != core.HumanVsComputer {
		return chess.NoColor
	}
	return s.humanColor.Other()
}

// DifficultyFor returns the profile governing the computer when side is to
// move.
func (s *Session) DifficultyFor(side chess.Color) (difficulty.Profile, error) {
	switch s.mode {
	case core.HumanVsHuman:
		return difficulty.Profile{}, &ModeError{Mode: s.mode, Err: ErrNoDifficulty}
	case core.HumanVsComputer:
		if side != s.ComputerColor() {
			return difficulty.Profile{}, &ModeError{Mode: s.mode, Err: fmt.Errorf("%w: %s is human", ErrNoDifficulty, side.Name())}
		}
		return s.single, nil
	case core.ComputerVsComputer:
		switch side {
		case chess.White:
			return s.white, nil
		case chess.Black:
			return s.black, nil
		default:
			return difficulty.Profile{}, &ModeError{Mode: s.mode, Err: ErrInvalidColor}
		}
	default:
		return difficulty.Profile{}, &ModeError{Mode: s.mode, Err: ErrInvalidMode}
	}
}

// IsComputerTurn reports whether the move for toMove must come from a
// computer source.
func IsComputerTurn(s *Session, toMove chess.Color) bool {
	switch s.mode {
	case core.HumanVsHuman:
		return false
	case core.HumanVsComputer:
		return toMove == s.ComputerColor()
	case core.ComputerVsComputer:
		return true
	default:
		return false
	}
}

func (s *Session) String() string {
	switch s.mode {
	case core.HumanVsComputer:
		return fmt.Sprintf("%s %s (human %s, %s)", s.id, s.mode, s.humanColor.Name(), s.single.Name)
	case core.ComputerVsComputer:
		return fmt.Sprintf("%s %s (white %s, black %s)", s.id, s.mode, s.white.Name, s.black.Name)
	default:
		return fmt.Sprintf("%s %s", s.id, s.mode)
	}
}
