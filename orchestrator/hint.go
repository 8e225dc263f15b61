package orchestrator

import (
	"context"

	"github.com/notnil/chess"

	"github.com/hupe1980/chessbridge/book"
	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/engine"
	"github.com/hupe1980/chessbridge/game"
)

// Suggestion is a move proposed for the side to move. It is never applied.
type Suggestion struct {
	Move   *chess.Move
	SAN    string
	Source core.MoveSource
}

// Book returns the opening table in use, or nil.
func (o *Orchestrator) Book() book.Lookuper {
	o.bookMu.RLock()
	defer o.bookMu.RUnlock()
	return o.book
}

// SetBook replaces the opening table. Nil disables it. The swap is refused
// with ErrBusy while a move or hint is being computed.
func (o *Orchestrator) SetBook(lk book.Lookuper) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.busy.Store(false)

	o.bookMu.Lock()
	o.book = lk
	o.bookMu.Unlock()
	return nil
}

// HasBookMoves reports whether the opening table has an entry for pos.
func (o *Orchestrator) HasBookMoves(pos *chess.Position) bool {
	lk := o.Book()
	if lk == nil {
		return false
	}
	if f, ok := lk.(book.Finder); ok {
		entries, err := f.Find(pos, o.minBookWeight)
		return err == nil && len(entries) > 0
	}
	_, ok, err := lk.Lookup(pos, o.minBookWeight)
	return err == nil && ok
}

// BookHint returns the opening table's move for the position on b and
// publishes HintReady. The boolean is false when no table is loaded or it
// has nothing for the position.
func (o *Orchestrator) BookHint(sess *game.Session, b core.Board) (Suggestion, bool, error) {
	lk := o.Book()
	if lk == nil {
		return Suggestion{}, false, nil
	}
	pos := b.Position()
	m, ok, err := lk.Lookup(pos, o.minBookWeight)
	if err != nil {
		return Suggestion{}, false, err
	}
	if !ok || m == nil {
		return Suggestion{}, false, nil
	}
	s, err := o.suggest(sess, pos, m, nil, core.SourceBook)
	return s, err == nil, err
}

// Hint asks the engine for a move in the position on b, searching for
// Options.HintTime. Hints are available to either side in every mode, but
// share the single in-flight slot with computer moves.
func (o *Orchestrator) Hint(ctx context.Context, sess *game.Session, b core.Board) (Suggestion, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Suggestion{}, ErrBusy
	}
	defer o.busy.Store(false)

	if b.IsTerminal() {
		return Suggestion{}, ErrGameOver
	}
	pos := b.Position()
	m, err := o.searcher.SearchMove(ctx, pos, engine.Limit{Time: o.hintTime})
	return o.suggest(sess, pos, m, err, core.SourceEngine)
}

// HintAsync is the non-blocking form of Hint. ErrBusy, ErrGameOver and
// submission errors are returned directly; otherwise onDone runs exactly
// once. Cancel abandons the search.
func (o *Orchestrator) HintAsync(sess *game.Session, b core.Board, onDone func(Suggestion, error)) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	if b.IsTerminal() {
		o.busy.Store(false)
		return ErrGameOver
	}

	pos := b.Position()
	h, err := o.searcher.SearchMoveAsync(pos, engine.Limit{Time: o.hintTime}, func(out engine.Outcome) {
		s, err := o.suggest(sess, pos, out.Move, out.Err, core.SourceEngine)
		o.setHandle(nil)
		o.busy.Store(false)
		onDone(s, err)
	})
	if err != nil {
		o.hintFailed(sess, pos, err)
		o.busy.Store(false)
		return err
	}
	o.setHandle(h)
	return nil
}

func (o *Orchestrator) suggest(sess *game.Session, pos *chess.Position, m *chess.Move, err error, src core.MoveSource) (Suggestion, error) {
	if err == nil && m == nil {
		err = ErrNoMove
	}
	if err != nil {
		o.hintFailed(sess, pos, err)
		return Suggestion{}, err
	}

	san := chess.AlgebraicNotation{}.Encode(pos, m)
	o.publisher.Publish(core.NewHintReadyEvent(sess.ID(), m.String(), san, src, pos.String()))
	o.logger.Info("hint ready", "session_id", sess.ID(), "move", m.String(), "san", san, "source", src.String())
	return Suggestion{Move: m, SAN: san, Source: src}, nil
}

func (o *Orchestrator) hintFailed(sess *game.Session, pos *chess.Position, err error) {
	o.logger.Warn("hint failed", "session_id", sess.ID(), "fen", pos.String(), "error", err)
	o.publisher.Publish(core.NewSearchFailedEvent(sess.ID(), "hint failed: "+err.Error()))
}
