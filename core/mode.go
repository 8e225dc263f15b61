package core

import (
	"fmt"
	"strings"
)

// GameMode selects who controls each side of a game.
type GameMode int

const (
	// HumanVsHuman leaves both sides to human players.
	HumanVsHuman GameMode = iota
	// HumanVsComputer gives one side to a human and the other to the engine.
	HumanVsComputer
	// ComputerVsComputer lets the engine play both sides.
	ComputerVsComputer
)

// String returns the canonical name of the mode.
func (m GameMode) String() string {
	switch m {
	case HumanVsHuman:
		return "human_vs_human"
	case HumanVsComputer:
		return "human_vs_computer"
	case ComputerVsComputer:
		return "computer_vs_computer"
	default:
		return fmt.Sprintf("GameMode(%d)", int(m))
	}
}

// Valid reports whether m is one of the declared modes.
func (m GameMode) Valid() bool {
	switch m {
	case HumanVsHuman, HumanVsComputer, ComputerVsComputer:
		return true
	default:
		return false
	}
}

// ParseGameMode accepts the canonical names plus the short forms hvh, hvc and cvc.
func ParseGameMode(s string) (GameMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human_vs_human", "hvh":
		return HumanVsHuman, nil
	case "human_vs_computer", "hvc":
		return HumanVsComputer, nil
	case "computer_vs_computer", "cvc":
		return ComputerVsComputer, nil
	default:
		return HumanVsHuman, fmt.Errorf("unknown game mode %q", s)
	}
}

// MoveSource identifies where a move came from.
type MoveSource int

const (
	// SourceBook marks a move taken from the opening table.
	SourceBook MoveSource = iota + 1
	// SourceEngine marks a move computed by the external search process.
	SourceEngine
	// SourceHuman marks a move entered by a player.
	SourceHuman
)

func (s MoveSource) String() string {
	switch s {
	case SourceBook:
		return "book"
	case SourceEngine:
		return "engine"
	case SourceHuman:
		return "human"
	default:
		return "unknown"
	}
}
