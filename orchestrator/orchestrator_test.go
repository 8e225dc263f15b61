package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chessbridge/board"
	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/difficulty"
	"github.com/hupe1980/chessbridge/engine"
	"github.com/hupe1980/chessbridge/game"
	"github.com/hupe1980/chessbridge/internal/testutil"
)

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) SearchMove(ctx context.Context, pos *chess.Position, limit engine.Limit) (*chess.Move, error) {
	args := m.Called(ctx, pos, limit)
	mv, _ := args.Get(0).(*chess.Move)
	return mv, args.Error(1)
}

func (m *mockSearcher) SearchMoveAsync(pos *chess.Position, limit engine.Limit, onDone func(engine.Outcome)) (*engine.Handle, error) {
	args := m.Called(pos, limit, onDone)
	h, _ := args.Get(0).(*engine.Handle)
	return h, args.Error(1)
}

type mockBook struct{ mock.Mock }

func (m *mockBook) Lookup(pos *chess.Position, minWeight int) (*chess.Move, bool, error) {
	args := m.Called(pos, minWeight)
	mv, _ := args.Get(0).(*chess.Move)
	return mv, args.Bool(1), args.Error(2)
}

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) OnEvent(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []core.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) last() core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func moveFor(t *testing.T, pos *chess.Position, uci string) *chess.Move {
	t.Helper()
	m, err := chess.UCINotation{}.Decode(pos, uci)
	require.NoError(t, err)
	return m
}

func hvcSession(t *testing.T, human chess.Color, level difficulty.Level) *game.Session {
	t.Helper()
	p := difficulty.DefaultProfiles[level]
	s, err := game.NewSession(game.Config{Mode: core.HumanVsComputer, HumanColor: human, Difficulty: &p})
	require.NoError(t, err)
	return s
}

func cvcSession(t *testing.T) *game.Session {
	t.Helper()
	w, b := difficulty.DefaultProfiles[difficulty.Master], difficulty.DefaultProfiles[difficulty.Beginner]
	s, err := game.NewSession(game.Config{Mode: core.ComputerVsComputer, WhiteDifficulty: &w, BlackDifficulty: &b})
	require.NoError(t, err)
	return s
}

func newOrchestrator(s Searcher, lk *mockBook) (*Orchestrator, *recorder) {
	rec := &recorder{}
	o := New(s, func(o *Options) {
		if lk != nil {
			o.Book = lk
		}
	})
	o.Publisher().Subscribe(rec)
	return o, rec
}

func TestRequestComputerMove_BookHitSkipsEngine(t *testing.T) {
	b := board.New()
	searcher := &mockSearcher{}
	lk := &mockBook{}
	lk.On("Lookup", mock.Anything, 1).Return(moveFor(t, b.Position(), "e2e4"), true, nil)

	o, rec := newOrchestrator(searcher, lk)
	res, err := o.RequestComputerMove(context.Background(), hvcSession(t, chess.Black, difficulty.Master), b)
	require.NoError(t, err)

	assert.Equal(t, core.SourceBook, res.Source)
	assert.Equal(t, "e4", res.SAN)
	assert.Equal(t, []string{"e2e4"}, b.Moves())
	searcher.AssertNotCalled(t, "SearchMove", mock.Anything, mock.Anything, mock.Anything)

	assert.Equal(t, []core.EventKind{core.KindMoveApplied}, rec.kinds())
	ev := rec.last()
	assert.Equal(t, "e2e4", ev.Move)
	assert.Equal(t, core.SourceBook, ev.Source)
	assert.Equal(t, b.FEN(), ev.Position)
	assert.False(t, o.Busy())
}

func TestRequestComputerMove_BookMissUsesEngineBudget(t *testing.T) {
	b := board.New()
	_, err := b.ApplyUCI("e2e4")
	require.NoError(t, err)

	reply := moveFor(t, b.Position(), "c7c5")
	searcher := &mockSearcher{}
	searcher.On("SearchMove", mock.Anything, mock.Anything, engine.Limit{Time: 1500 * time.Millisecond, Depth: 6}).Return(reply, nil).Once()
	lk := &mockBook{}
	lk.On("Lookup", mock.Anything, 1).Return(nil, false, nil)

	o, rec := newOrchestrator(searcher, lk)
	res, err := o.RequestComputerMove(context.Background(), hvcSession(t, chess.White, difficulty.Advanced), b)
	require.NoError(t, err)

	assert.Equal(t, core.SourceEngine, res.Source)
	assert.Equal(t, "c5", res.SAN)
	assert.Equal(t, []string{"e2e4", "c7c5"}, b.Moves())
	assert.Equal(t, []core.EventKind{core.KindComputerThinking, core.KindComputerThinking, core.KindMoveApplied}, rec.kinds())
	assert.True(t, rec.events[0].Thinking)
	assert.False(t, rec.events[1].Thinking)
	searcher.AssertExpectations(t)
	lk.AssertExpectations(t)
}

func TestRequestComputerMove_BookErrorFallsBack(t *testing.T) {
	b := board.New()
	searcher := &mockSearcher{}
	searcher.On("SearchMove", mock.Anything, mock.Anything, mock.Anything).Return(moveFor(t, b.Position(), "d2d4"), nil)
	lk := &mockBook{}
	lk.On("Lookup", mock.Anything, 1).Return(nil, false, errors.New("disk on fire"))

	o, _ := newOrchestrator(searcher, lk)
	res, err := o.RequestComputerMove(context.Background(), cvcSession(t), b)
	require.NoError(t, err)
	assert.Equal(t, core.SourceEngine, res.Source)
	searcher.AssertNumberOfCalls(t, "SearchMove", 1)
}

func TestRequestComputerMove_PerSideDifficulty(t *testing.T) {
	b := board.New()
	searcher := &mockSearcher{}
	searcher.On("SearchMove", mock.Anything, mock.Anything, engine.Limit{Time: 5 * time.Second, Depth: 10}).
		Return(moveFor(t, b.Position(), "g1f3"), nil).Once()

	o, _ := newOrchestrator(searcher, nil)
	sess := cvcSession(t)
	_, err := o.RequestComputerMove(context.Background(), sess, b)
	require.NoError(t, err)

	searcher.On("SearchMove", mock.Anything, mock.Anything, engine.Limit{Time: 150 * time.Millisecond, Depth: 2}).
		Return(moveFor(t, b.Position(), "g8f6"), nil).Once()
	_, err = o.RequestComputerMove(context.Background(), sess, b)
	require.NoError(t, err)

	assert.Equal(t, []string{"g1f3", "g8f6"}, b.Moves())
	searcher.AssertExpectations(t)
}

func TestRequestComputerMove_NotComputerTurn(t *testing.T) {
	b := board.New()
	searcher := &mockSearcher{}
	lk := &mockBook{}
	o, rec := newOrchestrator(searcher, lk)

	_, err := o.RequestComputerMove(context.Background(), hvcSession(t, chess.White, difficulty.Beginner), b)
	assert.ErrorIs(t, err, game.ErrNotComputerTurn)
	var me *game.ModeError
	assert.True(t, errors.As(err, &me))

	hvh, err := game.NewSession(game.Config{Mode: core.HumanVsHuman})
	require.NoError(t, err)
	_, err = o.RequestComputerMove(context.Background(), hvh, b)
	assert.ErrorIs(t, err, game.ErrNotComputerTurn)

	lk.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
	searcher.AssertNotCalled(t, "SearchMove", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, rec.kinds())
	assert.Empty(t, b.Moves())
}

func TestRequestComputerMove_GameOver(t *testing.T) {
	b, err := board.FromFEN("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	require.NoError(t, err)
	searcher := &mockSearcher{}
	o, _ := newOrchestrator(searcher, nil)

	_, err = o.RequestComputerMove(context.Background(), cvcSession(t), b)
	assert.ErrorIs(t, err, ErrGameOver)
	searcher.AssertNotCalled(t, "SearchMove", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestComputerMove_SearchFailureLeavesBoard(t *testing.T) {
	tests := []struct {
		name    string
		move    *chess.Move
		err     error
		wantErr error
	}{
		{"timeout", nil, &engine.SearchError{Op: "search", Timeout: 6500 * time.Millisecond, Err: engine.ErrSearchTimeout}, engine.ErrSearchTimeout},
		{"crash", nil, engine.ErrProcessExited, engine.ErrProcessExited},
		{"no move", nil, nil, ErrNoMove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := board.New()
			before := b.FEN()
			searcher := &mockSearcher{}
			searcher.On("SearchMove", mock.Anything, mock.Anything, mock.Anything).Return(tt.move, tt.err)

			o, rec := newOrchestrator(searcher, nil)
			_, err := o.RequestComputerMove(context.Background(), cvcSession(t), b)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, before, b.FEN())
			assert.Equal(t, []core.EventKind{core.KindComputerThinking, core.KindComputerThinking, core.KindSearchFailed}, rec.kinds())
			assert.NotEmpty(t, rec.last().Reason)
			assert.False(t, o.Busy())
		})
	}
}

func TestRequestComputerMove_StaleResult(t *testing.T) {
	b := board.New()
	searcher := &mockSearcher{}
	searcher.On("SearchMove", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			// the position changes while the engine is thinking
			_, err := b.ApplyUCI("e2e4")
			require.NoError(t, err)
		}).
		Return(moveFor(t, b.Position(), "d2d4"), nil)

	o, rec := newOrchestrator(searcher, nil)
	_, err := o.RequestComputerMove(context.Background(), cvcSession(t), b)
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.Equal(t, []string{"e2e4"}, b.Moves())
	assert.Equal(t, core.KindSearchFailed, rec.last().Kind)
}

func TestRequestComputerMove_PlainBoard(t *testing.T) {
	g := board.New()
	// embedding hides CompareAndApply, leaving a plain core.Board
	var b core.Board = struct{ core.Board }{g}
	_, isConditional := b.(core.ConditionalApplier)
	require.False(t, isConditional)

	searcher := &mockSearcher{}
	searcher.On("SearchMove", mock.Anything, mock.Anything, mock.Anything).Return(moveFor(t, g.Position(), "b1c3"), nil)

	o, _ := newOrchestrator(searcher, nil)
	res, err := o.RequestComputerMove(context.Background(), cvcSession(t), b)
	require.NoError(t, err)
	assert.Equal(t, "Nc3", res.SAN)
	assert.Equal(t, []string{"b1c3"}, g.Moves())
}

func TestRequestComputerMoveAsync(t *testing.T) {
	b := board.New()
	reply := moveFor(t, b.Position(), "e2e4")
	searcher := &mockSearcher{}
	searcher.On("SearchMoveAsync", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			onDone := args.Get(2).(func(engine.Outcome))
			go func() {
				time.Sleep(20 * time.Millisecond)
				onDone(engine.Outcome{ID: "r1", Move: reply})
			}()
		}).
		Return(nil, nil)

	o, rec := newOrchestrator(searcher, nil)
	done := make(chan Result, 1)
	err := o.RequestComputerMoveAsync(cvcSession(t), b, func(res Result, err error) {
		assert.NoError(t, err)
		done <- res
	})
	require.NoError(t, err)
	assert.True(t, o.Busy())

	err = o.RequestComputerMoveAsync(cvcSession(t), b, func(Result, error) { t.Error("second request must not run") })
	assert.ErrorIs(t, err, ErrBusy)

	select {
	case res := <-done:
		assert.Equal(t, core.SourceEngine, res.Source)
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
	assert.False(t, o.Busy())
	assert.Equal(t, []string{"e2e4"}, b.Moves())
	assert.Equal(t, []core.EventKind{core.KindComputerThinking, core.KindComputerThinking, core.KindMoveApplied}, rec.kinds())
}

func TestRequestComputerMoveAsync_BookHitIsInline(t *testing.T) {
	b := board.New()
	searcher := &mockSearcher{}
	lk := &mockBook{}
	lk.On("Lookup", mock.Anything, 1).Return(moveFor(t, b.Position(), "c2c4"), true, nil)

	o, _ := newOrchestrator(searcher, lk)
	var got Result
	err := o.RequestComputerMoveAsync(cvcSession(t), b, func(res Result, err error) {
		require.NoError(t, err)
		got = res
	})
	require.NoError(t, err)
	assert.Equal(t, core.SourceBook, got.Source)
	assert.False(t, o.Busy())
	searcher.AssertNotCalled(t, "SearchMoveAsync", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestComputerMoveAsync_Errors(t *testing.T) {
	b := board.New()
	searcher := &mockSearcher{}
	searcher.On("SearchMoveAsync", mock.Anything, mock.Anything, mock.Anything).Return(nil, engine.ErrNotRunning)

	o, rec := newOrchestrator(searcher, nil)

	err := o.RequestComputerMoveAsync(hvcSession(t, chess.White, difficulty.Beginner), b, func(Result, error) { t.Error("unexpected callback") })
	assert.ErrorIs(t, err, game.ErrNotComputerTurn)
	assert.False(t, o.Busy())

	err = o.RequestComputerMoveAsync(cvcSession(t), b, func(Result, error) { t.Error("unexpected callback") })
	assert.ErrorIs(t, err, engine.ErrNotRunning)
	assert.False(t, o.Busy())
	assert.Equal(t, core.KindSearchFailed, rec.last().Kind)
	assert.False(t, o.Cancel())
}

func startSlowWorker(t *testing.T, delay time.Duration) (*engine.Worker, string) {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)

	logPath := filepath.Join(t.TempDir(), "engine.log")
	w := engine.New(exe, func(o *engine.Options) {
		o.Env = append(testutil.FakeEngineEnv(testutil.ModeSlow, logPath), testutil.FakeEngineDelayEnv+"="+delay.String())
		o.Config.QuitGracePeriod = 500 * time.Millisecond
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, logPath
}

func TestRequestComputerMoveAsync_CancelPendingSearch(t *testing.T) {
	w, logPath := startSlowWorker(t, 5*time.Second)

	b := board.New()
	before := b.FEN()
	o, rec := newOrchestrator(w, nil)

	var calls atomic.Int32
	errc := make(chan error, 2)
	err := o.RequestComputerMoveAsync(cvcSession(t), b, func(res Result, err error) {
		calls.Add(1)
		assert.Nil(t, res.Move)
		errc <- err
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return testutil.CountLogged(logPath, "go") == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, testutil.FakeEngineLog(logPath), "go depth 10")
	require.Eventually(t, o.Cancel, time.Second, 5*time.Millisecond)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, engine.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}

	assert.False(t, o.Busy())
	assert.False(t, o.Cancel())
	assert.Equal(t, before, b.FEN())
	assert.Empty(t, b.Moves())
	assert.Equal(t, []core.EventKind{core.KindComputerThinking, core.KindComputerThinking, core.KindSearchFailed}, rec.kinds())

	// the worker stays usable and the callback is not repeated
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, engine.Running, w.State())
}

func TestRequestComputerMove_BusyWhileSearching(t *testing.T) {
	b := board.New()
	release := make(chan struct{})
	started := make(chan struct{})
	searcher := &mockSearcher{}
	searcher.On("SearchMove", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(moveFor(t, b.Position(), "e2e4"), nil)

	o, _ := newOrchestrator(searcher, nil)
	sess := cvcSession(t)

	errc := make(chan error, 1)
	go func() {
		_, err := o.RequestComputerMove(context.Background(), sess, b)
		errc <- err
	}()
	<-started

	_, err := o.RequestComputerMove(context.Background(), sess, b)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-errc)
}
