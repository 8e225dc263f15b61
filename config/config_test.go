package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/difficulty"
	"github.com/hupe1980/chessbridge/logging"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, time.Second, s.Engine.HintTime.Std())
	assert.Equal(t, 15*time.Second, s.Engine.StartupTimeout.Std())

	cfg, err := s.GameConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, core.HumanVsComputer, cfg.Mode)
	assert.Equal(t, chess.White, cfg.HumanColor)
	require.NotNil(t, cfg.Difficulty)
	assert.Equal(t, "intermediate", cfg.Difficulty.Name)
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`
engine:
  path: /opt/engines/stockfish
  options:
    Hash: "64"
  startup_timeout: 5s
book:
  path: book.cbk
  min_weight: 3
game:
  mode: cvc
  white_difficulty: beginner
  black_difficulty: master
  difficulties:
    master:
      time_budget: 8s
      depth: 12
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "/opt/engines/stockfish", s.Engine.Path)
	assert.Equal(t, map[string]string{"Hash": "64"}, s.Engine.Options)
	assert.Equal(t, 5*time.Second, s.Engine.StartupTimeout.Std())
	// untouched fields keep their defaults
	assert.Equal(t, 10*time.Second, s.Engine.HandshakeTimeout.Std())
	assert.Equal(t, 3, s.Book.MinWeight)

	cfg, err := s.GameConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, core.ComputerVsComputer, cfg.Mode)
	assert.Equal(t, 150*time.Millisecond, cfg.WhiteDifficulty.TimeBudget)
	assert.Equal(t, 8*time.Second, cfg.BlackDifficulty.TimeBudget)
	assert.Equal(t, 12, cfg.BlackDifficulty.Depth)

	ec := s.EngineConfig()
	assert.Equal(t, 5*time.Second, ec.StartupTimeout)
}

func TestParseEmpty(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "engine:\n  pth: x\n"},
		{"bad duration", "engine:\n  startup_timeout: soon\n"},
		{"negative duration", "engine:\n  hint_time: -1s\n"},
		{"unknown mode", "game:\n  mode: blitz\n"},
		{"unknown color", "game:\n  human_color: green\n"},
		{"unknown difficulty", "game:\n  difficulty: grandmaster\n"},
		{"bad override", "game:\n  difficulties:\n    advanced:\n      depth: -2\n"},
		{"unknown override level", "game:\n  difficulties:\n    godlike:\n      depth: 2\n"},
		{"negative min weight", "book:\n  min_weight: -1\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad backend", "logging:\n  backend: log4j\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	s := Default()
	s.Engine.StartupTimeout = 0
	s.Logging.Format = "xml"

	err := s.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "engine.startup_timeout")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chessbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  mode: hvh\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	cfg, err := s.GameConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, core.HumanVsHuman, cfg.Mode)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteRoundTrip(t *testing.T) {
	s := Default()
	s.Engine.Options = map[string]string{"Threads": "4"}

	var buf bytes.Buffer
	require.NoError(t, s.Write(&buf))
	assert.Contains(t, buf.String(), "hint_time: 1s")

	back, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestCatalogOverrides(t *testing.T) {
	s := Default()
	s.Game.Difficulties = map[string]ProfileOverride{
		"Beginner": {Description: "Very gentle", TimeBudget: Duration(100 * time.Millisecond)},
	}
	cat, err := s.Catalog()
	require.NoError(t, err)

	p, err := cat.Lookup(difficulty.Beginner)
	require.NoError(t, err)
	assert.Equal(t, "Very gentle", p.Description)
	assert.Equal(t, 100*time.Millisecond, p.TimeBudget)
	assert.Equal(t, 2, p.Depth)

	// the built-in catalog is unchanged
	orig, err := difficulty.Default().Lookup(difficulty.Beginner)
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, orig.TimeBudget)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor(" Black ")
	require.NoError(t, err)
	assert.Equal(t, chess.Black, c)

	c, err = ParseColor("w")
	require.NoError(t, err)
	assert.Equal(t, chess.White, c)

	_, err = ParseColor("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEnginePath(t *testing.T) {
	s := Default()
	s.Engine.Path = "/usr/games/stockfish"
	p, err := s.EnginePath()
	require.NoError(t, err)
	assert.Equal(t, "/usr/games/stockfish", p)

	dir := t.TempDir()
	bin := filepath.Join(dir, "komodo")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	s = Default()
	s.Engine.Family = "komodo"
	s.Engine.EnginesDir = dir
	p, err = s.EnginePath()
	require.NoError(t, err)
	assert.Equal(t, bin, p)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	s := Default()
	s.Logging.Format = "json"
	l, err := s.NewLogger(&buf)
	require.NoError(t, err)
	assert.IsType(t, &logging.StructuredLogger{}, l)
	l.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	s.Logging.Backend = "zerolog"
	l, err = s.NewLogger(&buf)
	require.NoError(t, err)
	assert.IsType(t, &logging.ZerologAdapter{}, l)
	l.Warn("careful")
	assert.Contains(t, buf.String(), `"message":"careful"`)
}
