package chessbridge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chessbridge/book"
	"github.com/hupe1980/chessbridge/config"
	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/engine"
	"github.com/hupe1980/chessbridge/game"
	"github.com/hupe1980/chessbridge/internal/testutil"
	"github.com/hupe1980/chessbridge/logging"
	"github.com/hupe1980/chessbridge/orchestrator"
)

func fakeSettings(t *testing.T, mode string) config.Settings {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)

	s := config.Default()
	s.Engine.Path = exe
	s.Engine.QuitGracePeriod = config.Duration(500 * time.Millisecond)
	s.Game.Mode = mode
	s.Game.Difficulty = "beginner"
	s.Game.WhiteDifficulty = "beginner"
	s.Game.BlackDifficulty = "beginner"
	return s
}

func newBridge(t *testing.T, s config.Settings, optFns ...func(o *Options)) *Bridge {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.EngineEnv = testutil.FakeEngineEnv(testutil.ModeNormal, "")
	}}, optFns...)
	b, err := New(s, fns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestNew_InvalidSettings(t *testing.T) {
	s := config.Default()
	s.Game.Mode = "blitz"
	_, err := New(s)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNew_EngineNotFound(t *testing.T) {
	s := config.Default()
	s.Engine.Path = ""
	s.Engine.Family = "no-such-engine-family"
	s.Engine.EnginesDir = t.TempDir()
	s.Engine.SearchPaths = nil

	_, err := New(s, func(o *Options) { o.Logger = logging.NoOpLogger{} })
	assert.ErrorIs(t, err, engine.ErrEngineNotFound)
}

func TestBridge_StartFailsForMissingBinary(t *testing.T) {
	s := config.Default()
	s.Engine.Path = filepath.Join(t.TempDir(), "stockfish")
	b := newBridge(t, s)

	err := b.Start(context.Background())
	var se *engine.StartupError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, engine.ErrEngineNotFound)
	assert.Equal(t, engine.Stopped, b.Worker().State())
}

func TestBridge_ComputerVsComputer(t *testing.T) {
	b := newBridge(t, fakeSettings(t, "cvc"))
	require.NoError(t, b.Start(context.Background()))

	bd := b.NewBoard()
	for i := 0; i < 4; i++ {
		require.True(t, b.IsComputerTurn(bd))
		res, err := b.PlayTurn(context.Background(), bd)
		require.NoError(t, err)
		assert.Equal(t, core.SourceEngine, res.Source)
		assert.NotEmpty(t, res.SAN)
	}
	assert.Len(t, bd.Moves(), 4)

	var applied int
	for _, ev := range b.History() {
		assert.Equal(t, b.Session().ID(), ev.SessionID)
		if ev.Kind == core.KindMoveApplied {
			applied++
		}
	}
	assert.Equal(t, 4, applied)
}

func TestBridge_HumanVsComputer(t *testing.T) {
	s := fakeSettings(t, "hvc")
	s.Game.HumanColor = "black"
	b := newBridge(t, s)
	require.NoError(t, b.Start(context.Background()))

	bd := b.NewBoard()

	_, err := b.ApplyHumanMove(bd, "e4")
	var me *game.ModeError
	require.ErrorAs(t, err, &me)
	assert.ErrorIs(t, err, game.ErrNotHumanTurn)

	res, err := b.PlayTurn(context.Background(), bd)
	require.NoError(t, err)
	assert.Equal(t, core.SourceEngine, res.Source)
	assert.Equal(t, chess.Black, bd.SideToMove())

	_, err = b.PlayTurn(context.Background(), bd)
	assert.ErrorIs(t, err, game.ErrNotComputerTurn)

	res, err = b.ApplyHumanMove(bd, "Nf6")
	require.NoError(t, err)
	assert.Equal(t, core.SourceHuman, res.Source)
	assert.Equal(t, "g8f6", res.Move.String())
	assert.Equal(t, "Nf6", res.SAN)

	rec := b.History()
	require.NotEmpty(t, rec)
	last := rec[len(rec)-1]
	assert.Equal(t, core.KindMoveApplied, last.Kind)
	assert.Equal(t, core.SourceHuman, last.Source)
	assert.Equal(t, bd.FEN(), last.Position)
}

func TestBridge_ApplyHumanMoveRejectsIllegal(t *testing.T) {
	b := newBridge(t, fakeSettings(t, "hvh"))
	bd := b.NewBoard()

	_, err := b.ApplyHumanMove(bd, "e2e5")
	assert.Error(t, err)
	_, err = b.ApplyHumanMove(bd, "Ke2")
	assert.Error(t, err)
	assert.Empty(t, bd.Moves())

	_, err = b.ApplyHumanMove(bd, "e2e4")
	require.NoError(t, err)
	_, err = b.ApplyHumanMove(bd, "e5")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2e4", "e7e5"}, bd.Moves())
}

func TestBridge_BookMoveFromSettings(t *testing.T) {
	pos := chess.NewGame().Position()
	m, err := chess.UCINotation{}.Decode(pos, "d2d4")
	require.NoError(t, err)

	w := book.NewWriter()
	require.NoError(t, w.Add(pos, m, 10))
	path := filepath.Join(t.TempDir(), "book.cbk")
	require.NoError(t, w.WriteFile(path))

	s := fakeSettings(t, "cvc")
	s.Book.Path = path
	b := newBridge(t, s)

	// the book answers without the engine running
	res, err := b.PlayTurn(context.Background(), b.NewBoard())
	require.NoError(t, err)
	assert.Equal(t, core.SourceBook, res.Source)
	assert.Equal(t, "d2d4", res.Move.String())
	assert.Equal(t, "d4", res.SAN)
}

func TestBridge_BadBookPath(t *testing.T) {
	s := fakeSettings(t, "cvc")
	s.Book.Path = filepath.Join(t.TempDir(), "missing.cbk")
	_, err := New(s, func(o *Options) { o.Logger = logging.NoOpLogger{} })
	var be *book.Error
	assert.ErrorAs(t, err, &be)
}

func TestBridge_PlayTurnWithoutStart(t *testing.T) {
	b := newBridge(t, fakeSettings(t, "cvc"))
	_, err := b.PlayTurn(context.Background(), b.NewBoard())
	assert.ErrorIs(t, err, engine.ErrNotRunning)
}

func TestBridge_CloseTwice(t *testing.T) {
	b := newBridge(t, fakeSettings(t, "cvc"))
	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, engine.Stopped, b.Worker().State())
}

func slowEngine(delay time.Duration) func(o *Options) {
	return func(o *Options) {
		o.EngineEnv = append(testutil.FakeEngineEnv(testutil.ModeSlow, ""), testutil.FakeEngineDelayEnv+"="+delay.String())
	}
}

func withBudget(s config.Settings, budget time.Duration) config.Settings {
	s.Game.Difficulties = map[string]config.ProfileOverride{
		"beginner": {TimeBudget: config.Duration(budget)},
	}
	return s
}

func TestBridge_PlayTurnWaitsForLongBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("waits more than 30s for the engine")
	}
	// a 30s budget is waited on for engine.AdaptiveTimeout(30s) = 45s
	b := newBridge(t, withBudget(fakeSettings(t, "cvc"), 30*time.Second), slowEngine(31*time.Second))
	require.NoError(t, b.Start(context.Background()))

	start := time.Now()
	res, err := b.PlayTurn(context.Background(), b.NewBoard())
	require.NoError(t, err)
	assert.Equal(t, core.SourceEngine, res.Source)
	assert.GreaterOrEqual(t, time.Since(start), 31*time.Second)
}

func TestBridge_PlayTurnTimesOutAdaptively(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the adaptive timeout")
	}
	b := newBridge(t, withBudget(fakeSettings(t, "cvc"), time.Millisecond), slowEngine(30*time.Second))
	require.NoError(t, b.Start(context.Background()))

	bd := b.NewBoard()
	start := time.Now()
	_, err := b.PlayTurn(context.Background(), bd)
	assert.ErrorIs(t, err, engine.ErrSearchTimeout)
	took := time.Since(start)
	assert.GreaterOrEqual(t, took, engine.AdaptiveTimeout(time.Millisecond))
	assert.Less(t, took, 10*time.Second)
	assert.Empty(t, bd.Moves())
}

func TestBridge_PlayTurnHonorsCallerContext(t *testing.T) {
	b := newBridge(t, fakeSettings(t, "cvc"), slowEngine(30*time.Second))
	require.NoError(t, b.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := b.PlayTurn(ctx, b.NewBoard())
	assert.ErrorIs(t, err, engine.ErrCancelled)
}

func TestBridge_Hint(t *testing.T) {
	s := fakeSettings(t, "hvc")
	s.Engine.HintTime = config.Duration(100 * time.Millisecond)
	logPath := filepath.Join(t.TempDir(), "engine.log")
	b := newBridge(t, s, func(o *Options) {
		o.EngineEnv = testutil.FakeEngineEnv(testutil.ModeNormal, logPath)
	})
	require.NoError(t, b.Start(context.Background()))

	bd := b.NewBoard()
	sg, err := b.Hint(context.Background(), bd)
	require.NoError(t, err)
	assert.Equal(t, core.SourceEngine, sg.Source)
	assert.Contains(t, bd.Position().ValidMoves(), sg.Move)
	assert.Empty(t, bd.Moves())
	assert.Contains(t, testutil.FakeEngineLog(logPath), "go movetime 100")

	done := make(chan error, 1)
	require.NoError(t, b.HintAsync(bd, func(_ orchestrator.Suggestion, err error) { done <- err }))
	require.NoError(t, <-done)

	hist := b.History()
	require.Len(t, hist, 2)
	assert.Equal(t, core.KindHintReady, hist[1].Kind)
	assert.Equal(t, bd.FEN(), hist[1].Position)
}

func writeBook(t *testing.T, uci string) string {
	t.Helper()
	pos := chess.NewGame().Position()
	m, err := chess.UCINotation{}.Decode(pos, uci)
	require.NoError(t, err)

	w := book.NewWriter()
	require.NoError(t, w.Add(pos, m, 10))
	path := filepath.Join(t.TempDir(), "book.cbk")
	require.NoError(t, w.WriteFile(path))
	return path
}

func TestBridge_LoadAndUnloadBook(t *testing.T) {
	b := newBridge(t, fakeSettings(t, "cvc"))
	bd := b.NewBoard()

	assert.False(t, b.HasBookMoves(bd))
	_, ok, err := b.BookHint(bd)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.LoadBook(writeBook(t, "c2c4")))
	assert.True(t, b.HasBookMoves(bd))
	sg, ok, err := b.BookHint(bd)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c4", sg.SAN)
	assert.Empty(t, bd.Moves())

	// a second load replaces the first table
	require.NoError(t, b.LoadBook(writeBook(t, "g1f3")))
	res, err := b.PlayTurn(context.Background(), bd)
	require.NoError(t, err)
	assert.Equal(t, core.SourceBook, res.Source)
	assert.Equal(t, "Nf3", res.SAN)

	require.NoError(t, b.UnloadBook())
	require.NoError(t, b.UnloadBook())
	assert.False(t, b.HasBookMoves(b.NewBoard()))

	var be *book.Error
	assert.ErrorAs(t, b.LoadBook(filepath.Join(t.TempDir(), "missing.cbk")), &be)
}

func TestBridge_ComponentLogging(t *testing.T) {
	var out testutil.SyncBuffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &out})
	s := fakeSettings(t, "cvc")
	s.Book.Path = writeBook(t, "e2e4")
	b := newBridge(t, s, func(o *Options) { o.Logger = logger })
	require.NoError(t, b.Start(context.Background()))

	bd := b.NewBoard()
	_, err := b.PlayTurn(context.Background(), bd)
	require.NoError(t, err)
	_, err = b.PlayTurn(context.Background(), bd)
	require.NoError(t, err)

	var components []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if c, ok := rec["component"].(string); ok {
			components = append(components, c)
			assert.Equal(t, b.Session().ID(), rec["session_id"])
		}
		if rec["msg"] == "opening table loaded" {
			assert.Equal(t, "book", rec["component"])
		}
	}
	assert.Contains(t, components, "book")
	assert.Contains(t, components, "engine")
	assert.Contains(t, components, "orchestrator")
	assert.Equal(t, 1, strings.Count(out.String(), "opening table loaded"))
}
