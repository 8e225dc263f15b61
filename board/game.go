package board

import (
	"errors"
	"fmt"
	"sync"

	"github.com/notnil/chess"

	"github.com/hupe1980/chessbridge/core"
)

// ErrIllegalMove is returned when a move is not legal in the current position.
var ErrIllegalMove = errors.New("illegal move")

// ErrPositionChanged is returned by CompareAndApply when the board no longer
// holds the expected position.
var ErrPositionChanged = core.ErrPositionChanged

// Game is a concurrency-safe core.Board backed by *chess.Game.
type Game struct {
	mu   sync.Mutex
	game *chess.Game
}

var (
	_ core.Board              = (*Game)(nil)
	_ core.ConditionalApplier = (*Game)(nil)
)

// New returns a game at the standard starting position.
func New() *Game {
	return &Game{game: chess.NewGame()}
}

// FromFEN returns a game starting at the given position.
func FromFEN(fen string) (*Game, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	return &Game{game: chess.NewGame(opt)}, nil
}

// Position returns the current position. Positions are immutable; the
// returned value is a snapshot.
func (g *Game) Position() *chess.Position {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.game.Position()
}

// SideToMove returns the color to move.
func (g *Game) SideToMove() chess.Color {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.game.Position().Turn()
}

// FEN returns the current position in Forsyth-Edwards notation.
func (g *Game) FEN() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.game.Position().String()
}

// IsLegal reports whether m is legal in the current position.
func (g *Game) IsLegal(m *chess.Move) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.find(m) != nil
}

// IsTerminal reports whether the game has ended, by mate, stalemate or an
// automatic draw.
func (g *Game) IsTerminal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.terminal()
}

func (g *Game) terminal() bool {
	return g.game.Outcome() != chess.NoOutcome || len(g.game.ValidMoves()) == 0
}

// Outcome returns the result and how it was reached.
func (g *Game) Outcome() (chess.Outcome, chess.Method) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.game.Outcome(), g.game.Method()
}

// Moves returns the moves played so far in UCI notation.
func (g *Game) Moves() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	moves := g.game.Moves()
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.String()
	}
	return out
}

// PGN returns the game in portable game notation.
func (g *Game) PGN() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.game.String()
}

// Apply plays m. An illegal move leaves the game untouched.
func (g *Game) Apply(m *chess.Move) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.apply(m)
}

// CompareAndApply plays m only if the current position still matches
// expectedFEN.
func (g *Game) CompareAndApply(expectedFEN string, m *chess.Move) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur := g.game.Position().String(); cur != expectedFEN {
		return fmt.Errorf("%w: expected %q, have %q", ErrPositionChanged, expectedFEN, cur)
	}
	return g.apply(m)
}

func (g *Game) apply(m *chess.Move) error {
	if m == nil {
		return fmt.Errorf("%w: nil move", ErrIllegalMove)
	}
	if g.terminal() {
		return fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	legal := g.find(m)
	if legal == nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	if err := g.game.Move(legal); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return nil
}

// ApplyUCI plays a move given in UCI notation, such as "e2e4" or "e7e8q".
func (g *Game) ApplyUCI(s string) (*chess.Move, error) {
	return g.applyNotation(chess.UCINotation{}, s)
}

// ApplySAN plays a move given in standard algebraic notation, such as "Nf3".
func (g *Game) ApplySAN(s string) (*chess.Move, error) {
	return g.applyNotation(chess.AlgebraicNotation{}, s)
}

func (g *Game) applyNotation(n chess.Decoder, s string) (*chess.Move, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, err := n.Decode(g.game.Position(), s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrIllegalMove, s, err)
	}
	if err := g.apply(m); err != nil {
		return nil, err
	}
	return m, nil
}

// SAN returns m in standard algebraic notation as played from pos.
func SAN(pos *chess.Position, m *chess.Move) string {
	return chess.AlgebraicNotation{}.Encode(pos, m)
}

// find returns the legal move matching m's squares and promotion.
func (g *Game) find(m *chess.Move) *chess.Move {
	if m == nil {
		return nil
	}
	for _, v := range g.game.ValidMoves() {
		if v.S1() == m.S1() && v.S2() == m.S2() && v.Promo() == m.Promo() {
			return v
		}
	}
	return nil
}
