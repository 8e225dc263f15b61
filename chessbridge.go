// Package chessbridge wires the engine worker, opening table, game session
// and move orchestrator into a single object built from config.Settings.
//
// Most applications:
//  1. Load settings with config.Load (or start from config.Default)
//  2. Create a Bridge with New and Start it
//  3. Call PlayTurn whenever it is the computer's turn, and ApplyHumanMove
//     for moves entered by a player
//  4. Optionally offer Hint or BookHint to a player, and LoadBook or
//     UnloadBook to change the opening table mid-game
//
// Every move, thinking transition and failure is published on the Bridge's
// core.Publisher and recorded in its session store.
package chessbridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/chessbridge/board"
	"github.com/hupe1980/chessbridge/book"
	"github.com/hupe1980/chessbridge/config"
	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/engine"
	"github.com/hupe1980/chessbridge/game"
	"github.com/hupe1980/chessbridge/logging"
	"github.com/hupe1980/chessbridge/orchestrator"
	"github.com/hupe1980/chessbridge/session"
)

// Options configures the Bridge beyond what Settings describe.
type Options struct {
	// Logger overrides the logger built from Settings.Logging.
	Logger logging.Logger

	// Dispatcher decides where asynchronous search callbacks run.
	// Defaults to engine.DirectDispatcher.
	Dispatcher engine.Dispatcher

	// SessionStore receives every published event. Defaults to an
	// in-memory store.
	SessionStore core.SessionStore

	// EngineEnv entries are appended to the engine process environment.
	EngineEnv []string

	// Book overrides the table opened from Settings.Book.Path.
	Book book.Lookuper
}

// Bridge is the high-level façade over one game against one engine.
type Bridge struct {
	settings config.Settings
	logger   logging.Logger

	session   *game.Session
	worker    *engine.Worker
	publisher *core.Publisher
	orch      *orchestrator.Orchestrator
	store     core.SessionStore
	unsub     func()

	bookMu sync.Mutex
	table  *book.Table
}

// New validates settings and builds every component. The engine is not
// launched until Start.
func New(settings config.Settings, optFns ...func(o *Options)) (*Bridge, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		Dispatcher:   engine.DirectDispatcher{},
		SessionStore: session.NewInMemoryStore(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		l, err := settings.NewLogger(nil)
		if err != nil {
			return nil, err
		}
		opts.Logger = l
	}
	logger := opts.Logger

	cat, err := settings.Catalog()
	if err != nil {
		return nil, err
	}
	gcfg, err := settings.GameConfig(cat)
	if err != nil {
		return nil, err
	}
	sess, err := game.NewSession(gcfg)
	if err != nil {
		return nil, err
	}

	path, err := settings.EnginePath()
	if err != nil {
		return nil, fmt.Errorf("%w\n%s", err, engine.InstallHint(settings.DetectConfig().GOOS))
	}

	b := &Bridge{
		settings:  settings,
		logger:    logger,
		session:   sess,
		publisher: core.NewPublisher(logger),
		store:     opts.SessionStore,
	}

	lookup := opts.Book
	if lookup == nil && settings.Book.Path != "" {
		t, err := b.openBook(settings.Book.Path)
		if err != nil {
			return nil, err
		}
		b.table = t
		lookup = t
	}

	engineLog := logging.ForComponent(logger, "engine", sess.ID())
	if sl, ok := engineLog.(*logging.StructuredLogger); ok {
		engineLog = sl.WithContext("engine_family", settings.Engine.Family)
	}
	b.worker = engine.New(path, func(o *engine.Options) {
		o.Config = settings.EngineConfig()
		o.Options = settings.Engine.Options
		o.Args = settings.Engine.Args
		o.Env = opts.EngineEnv
		o.Dispatcher = opts.Dispatcher
		o.Logger = engineLog
	})

	b.orch = orchestrator.New(b.worker, func(o *orchestrator.Options) {
		o.Book = lookup
		o.MinBookWeight = settings.Book.MinWeight
		o.HintTime = settings.Engine.HintTime.Std()
		o.Publisher = b.publisher
		o.Logger = logging.ForComponent(logger, "orchestrator", sess.ID())
	})

	if _, err := b.store.Create(sess.ID()); err != nil {
		b.closeBook()
		return nil, err
	}
	b.unsub = b.publisher.Subscribe(session.Recorder(b.store, logger))

	return b, nil
}

// Start launches the engine and completes the UCI handshake.
func (b *Bridge) Start(ctx context.Context) error {
	return b.worker.Start(ctx)
}

// Close stops the engine and releases the opening table. It is safe to call
// more than once.
func (b *Bridge) Close() error {
	b.orch.Cancel()
	b.worker.Stop()
	if b.unsub != nil {
		b.unsub()
	}
	return b.closeBook()
}

func (b *Bridge) closeBook() error {
	b.bookMu.Lock()
	defer b.bookMu.Unlock()
	if b.table == nil {
		return nil
	}
	return b.table.Close()
}

func (b *Bridge) openBook(path string) (*book.Table, error) {
	return book.Open(path, func(o *book.Options) {
		o.Logger = logging.ForComponent(b.logger, "book", b.session.ID())
	})
}

// LoadBook opens the table at path and uses it for every following turn,
// replacing the current one. It fails with orchestrator.ErrBusy while a move
// or hint is in flight; the current table then stays in use.
func (b *Bridge) LoadBook(path string) error {
	t, err := b.openBook(path)
	if err != nil {
		return err
	}

	b.bookMu.Lock()
	defer b.bookMu.Unlock()
	if err := b.orch.SetBook(t); err != nil {
		_ = t.Close()
		return err
	}
	old := b.table
	b.table = t
	if old != nil {
		return old.Close()
	}
	return nil
}

// UnloadBook stops consulting the opening table and releases it.
func (b *Bridge) UnloadBook() error {
	b.bookMu.Lock()
	defer b.bookMu.Unlock()
	if err := b.orch.SetBook(nil); err != nil {
		return err
	}
	old := b.table
	b.table = nil
	if old != nil {
		b.logger.Info("opening table unloaded", "path", old.Path())
		return old.Close()
	}
	return nil
}

// HasBookMoves reports whether the opening table knows the position on bd.
func (b *Bridge) HasBookMoves(bd core.Board) bool {
	return b.orch.HasBookMoves(bd.Position())
}

// Settings returns the settings the Bridge was built from.
func (b *Bridge) Settings() config.Settings { return b.settings }

// Session returns the game session.
func (b *Bridge) Session() *game.Session { return b.session }

// Publisher returns the event publisher.
func (b *Bridge) Publisher() *core.Publisher { return b.publisher }

// Orchestrator returns the move orchestrator.
func (b *Bridge) Orchestrator() *orchestrator.Orchestrator { return b.orch }

// Worker returns the engine worker.
func (b *Bridge) Worker() *engine.Worker { return b.worker }

// History returns the events recorded for the game so far.
func (b *Bridge) History() []core.Event {
	rec, err := b.store.Get(b.session.ID())
	if err != nil {
		return nil
	}
	return rec.GetEvents()
}

// NewBoard returns a board at the standard starting position.
func (b *Bridge) NewBoard() *board.Game { return board.New() }

// IsComputerTurn reports whether the side to move on bd is played by the
// engine.
func (b *Bridge) IsComputerTurn(bd core.Board) bool {
	return game.IsComputerTurn(b.session, bd.SideToMove())
}

// PlayTurn computes and applies the computer's move. The engine wait is
// bounded by engine.AdaptiveTimeout of the side's time budget; ctx may end
// it sooner.
func (b *Bridge) PlayTurn(ctx context.Context, bd core.Board) (orchestrator.Result, error) {
	return b.orch.RequestComputerMove(ctx, b.session, bd)
}

// Hint asks the engine for a move in the position on bd without playing
// it. The search lasts Settings.Engine.HintTime.
func (b *Bridge) Hint(ctx context.Context, bd core.Board) (orchestrator.Suggestion, error) {
	return b.orch.Hint(ctx, b.session, bd)
}

// HintAsync is the non-blocking form of Hint.
func (b *Bridge) HintAsync(bd core.Board, onDone func(orchestrator.Suggestion, error)) error {
	return b.orch.HintAsync(b.session, bd, onDone)
}

// BookHint returns the opening table's move for the position on bd. The
// boolean is false when there is none.
func (b *Bridge) BookHint(bd core.Board) (orchestrator.Suggestion, bool, error) {
	return b.orch.BookHint(b.session, bd)
}

// ApplyHumanMove plays a move given in UCI or SAN notation on behalf of a
// player and publishes it.
func (b *Bridge) ApplyHumanMove(bd *board.Game, move string) (orchestrator.Result, error) {
	if b.IsComputerTurn(bd) {
		return orchestrator.Result{}, &game.ModeError{Mode: b.session.Mode(), Err: game.ErrNotHumanTurn}
	}
	before := bd.Position()
	m, err := bd.ApplyUCI(move)
	if err != nil {
		if m, err = bd.ApplySAN(move); err != nil {
			return orchestrator.Result{}, fmt.Errorf("%w: %q", board.ErrIllegalMove, move)
		}
	}
	san := board.SAN(before, m)
	b.publisher.Publish(core.NewMoveAppliedEvent(b.session.ID(), m.String(), san, core.SourceHuman, bd.FEN()))
	return orchestrator.Result{Move: m, SAN: san, Source: core.SourceHuman}, nil
}

// PlayTurnAsync is the non-blocking form of PlayTurn. onDone runs through
// the configured Dispatcher once the move is applied or has failed.
func (b *Bridge) PlayTurnAsync(bd core.Board, onDone func(orchestrator.Result, error)) error {
	return b.orch.RequestComputerMoveAsync(b.session, bd, onDone)
}
