package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/notnil/chess"

	"github.com/hupe1980/chessbridge/book"
	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/engine"
	"github.com/hupe1980/chessbridge/game"
	"github.com/hupe1980/chessbridge/logging"
)

// Searcher is the part of the engine worker the orchestrator depends on.
type Searcher interface {
	SearchMove(ctx context.Context, pos *chess.Position, limit engine.Limit) (*chess.Move, error)
	SearchMoveAsync(pos *chess.Position, limit engine.Limit, onDone func(engine.Outcome)) (*engine.Handle, error)
}

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Book is consulted before every search. Nil disables it.
	Book book.Lookuper
	// MinBookWeight is the smallest entry weight the book may return.
	MinBookWeight int
	// HintTime is the movetime of a hint search. Defaults to
	// engine.DefaultMoveTime.
	HintTime time.Duration
	// Publisher receives MoveApplied, ComputerThinking, HintReady and
	// SearchFailed events. A private publisher is created when nil.
	Publisher *core.Publisher
	// Logging services.
	Logger logging.Logger
}

// Result is a computer move that has been applied to the board.
type Result struct {
	Move   *chess.Move
	SAN    string
	Source core.MoveSource
}

// Orchestrator produces computer moves from the opening table or the engine.
// At most one move request is in flight at a time. Public methods are safe
// for concurrent use.
type Orchestrator struct {
	searcher      Searcher
	minBookWeight int
	hintTime      time.Duration
	publisher     *core.Publisher
	logger        logging.Logger

	bookMu sync.RWMutex
	book   book.Lookuper

	busy    atomic.Bool
	applyMu sync.Mutex

	mu     sync.Mutex
	handle *engine.Handle
}

// New constructs an Orchestrator with optional overrides.
func New(searcher Searcher, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MinBookWeight: book.DefaultMinWeight,
		HintTime:      engine.DefaultMoveTime,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Publisher == nil {
		opts.Publisher = core.NewPublisher(opts.Logger)
	}
	if opts.HintTime <= 0 {
		opts.HintTime = engine.DefaultMoveTime
	}

	return &Orchestrator{
		searcher:      searcher,
		book:          opts.Book,
		minBookWeight: opts.MinBookWeight,
		hintTime:      opts.HintTime,
		publisher:     opts.Publisher,
		logger:        opts.Logger,
	}
}

// Publisher returns the publisher events are sent to.
func (o *Orchestrator) Publisher() *core.Publisher { return o.publisher }

// Busy reports whether a computer move is being computed.
func (o *Orchestrator) Busy() bool { return o.busy.Load() }

// turn is the state captured when a move request is accepted.
type turn struct {
	sess *game.Session
	b    core.Board
	pos  *chess.Position
	fen  string
	side chess.Color
}

func (o *Orchestrator) begin(sess *game.Session, b core.Board) (turn, error) {
	side := b.SideToMove()
	if !game.IsComputerTurn(sess, side) {
		return turn{}, &game.ModeError{Mode: sess.Mode(), Err: fmt.Errorf("%w: %s to move", game.ErrNotComputerTurn, side.Name())}
	}
	if b.IsTerminal() {
		return turn{}, ErrGameOver
	}
	pos := b.Position()
	return turn{sess: sess, b: b, pos: pos, fen: pos.String(), side: side}, nil
}

func (o *Orchestrator) fromBook(t turn) (*chess.Move, bool) {
	lk := o.Book()
	if lk == nil {
		return nil, false
	}
	m, ok, err := lk.Lookup(t.pos, o.minBookWeight)
	if err != nil {
		o.logger.Warn("opening table lookup failed, falling back to engine", "session_id", t.sess.ID(), "fen", t.fen, "error", err)
		return nil, false
	}
	return m, ok && m != nil
}

func (o *Orchestrator) limitFor(t turn) (engine.Limit, error) {
	p, err := t.sess.DifficultyFor(t.side)
	if err != nil {
		return engine.Limit{}, err
	}
	return engine.Limit{Time: p.TimeBudget, Depth: p.Depth}, nil
}

// RequestComputerMove produces and applies the computer's move for the
// side to move. It blocks until the move is applied or the request fails.
func (o *Orchestrator) RequestComputerMove(ctx context.Context, sess *game.Session, b core.Board) (Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer o.busy.Store(false)

	t, err := o.begin(sess, b)
	if err != nil {
		return Result{}, err
	}

	if m, ok := o.fromBook(t); ok {
		return o.commit(t, m, core.SourceBook)
	}

	limit, err := o.limitFor(t)
	if err != nil {
		return Result{}, err
	}

	o.thinking(t, true)
	start := time.Now()
	m, err := o.searcher.SearchMove(ctx, t.pos, limit)
	o.thinking(t, false)

	return o.finish(t, m, err, time.Since(start))
}

// RequestComputerMoveAsync is the non-blocking form of RequestComputerMove.
// Mode errors and ErrBusy are returned directly; every other outcome is
// delivered to onDone exactly once. A book move is delivered before the
// call returns.
func (o *Orchestrator) RequestComputerMoveAsync(sess *game.Session, b core.Board, onDone func(Result, error)) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	t, err := o.begin(sess, b)
	if err != nil {
		o.busy.Store(false)
		return err
	}

	if m, ok := o.fromBook(t); ok {
		res, err := o.commit(t, m, core.SourceBook)
		o.busy.Store(false)
		onDone(res, err)
		return nil
	}

	limit, err := o.limitFor(t)
	if err != nil {
		o.busy.Store(false)
		return err
	}

	o.thinking(t, true)
	start := time.Now()
	h, err := o.searcher.SearchMoveAsync(t.pos, limit, func(out engine.Outcome) {
		o.thinking(t, false)
		res, err := o.finish(t, out.Move, out.Err, time.Since(start))
		o.setHandle(nil)
		o.busy.Store(false)
		onDone(res, err)
	})
	if err != nil {
		o.thinking(t, false)
		o.failed(t, err)
		o.busy.Store(false)
		return err
	}
	o.setHandle(h)
	return nil
}

// Cancel abandons the in-flight asynchronous engine search, if any. Its
// callback receives engine.ErrCancelled.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	h := o.handle
	o.mu.Unlock()
	if h == nil {
		return false
	}
	return h.Cancel()
}

func (o *Orchestrator) setHandle(h *engine.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if h != nil {
		select {
		case <-h.Done():
			return
		default:
		}
	}
	o.handle = h
}

func (o *Orchestrator) finish(t turn, m *chess.Move, err error, took time.Duration) (Result, error) {
	if err != nil {
		o.failed(t, err)
		return Result{}, err
	}
	if m == nil {
		o.failed(t, ErrNoMove)
		return Result{}, ErrNoMove
	}
	o.logger.Debug("engine move received", "session_id", t.sess.ID(), "move", m.String(), "duration", took)
	return o.commit(t, m, core.SourceEngine)
}

// commit applies m if the board still holds the position it was chosen
// for, then publishes MoveApplied.
func (o *Orchestrator) commit(t turn, m *chess.Move, src core.MoveSource) (Result, error) {
	san := chess.AlgebraicNotation{}.Encode(t.pos, m)

	if err := o.apply(t, m); err != nil {
		if errors.Is(err, core.ErrPositionChanged) {
			err = fmt.Errorf("%w: %s no longer applies: %v", ErrStaleResult, m, err)
		}
		o.failed(t, err)
		return Result{}, err
	}

	after := t.pos.Update(m).String()
	o.publisher.Publish(core.NewMoveAppliedEvent(t.sess.ID(), m.String(), san, src, after))
	o.logger.Info("computer move applied", "session_id", t.sess.ID(), "move", m.String(), "san", san, "source", src.String())

	return Result{Move: m, SAN: san, Source: src}, nil
}

func (o *Orchestrator) apply(t turn, m *chess.Move) error {
	if ca, ok := t.b.(core.ConditionalApplier); ok {
		return ca.CompareAndApply(t.fen, m)
	}

	o.applyMu.Lock()
	defer o.applyMu.Unlock()
	if cur := t.b.Position().String(); cur != t.fen {
		return fmt.Errorf("%w: expected %q, have %q", core.ErrPositionChanged, t.fen, cur)
	}
	if !t.b.IsLegal(m) {
		return fmt.Errorf("illegal move %s", m)
	}
	return t.b.Apply(m)
}

func (o *Orchestrator) thinking(t turn, on bool) {
	o.publisher.Publish(core.NewComputerThinkingEvent(t.sess.ID(), on))
}

func (o *Orchestrator) failed(t turn, err error) {
	o.logger.Warn("computer move failed", "session_id", t.sess.ID(), "fen", t.fen, "error", err)
	o.publisher.Publish(core.NewSearchFailedEvent(t.sess.ID(), err.Error()))
}
