package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/notnil/chess"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/difficulty"
	"github.com/hupe1980/chessbridge/engine"
	"github.com/hupe1980/chessbridge/game"
	"github.com/hupe1980/chessbridge/logging"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Settings is the complete chessbridge configuration.
type Settings struct {
	Engine  EngineSettings  `yaml:"engine"`
	Book    BookSettings    `yaml:"book"`
	Game    GameSettings    `yaml:"game"`
	Logging LoggingSettings `yaml:"logging"`
}

// EngineSettings configures engine discovery and the worker.
type EngineSettings struct {
	// Path to the engine executable. When empty the engine is detected.
	Path        string            `yaml:"path,omitempty"`
	Family      string            `yaml:"family,omitempty"`
	EnginesDir  string            `yaml:"engines_dir,omitempty"`
	SearchPaths []string          `yaml:"search_paths,omitempty"`
	Args        []string          `yaml:"args,omitempty"`
	Options     map[string]string `yaml:"options,omitempty"`

	StartupTimeout   Duration `yaml:"startup_timeout"`
	HandshakeTimeout Duration `yaml:"handshake_timeout"`
	QuitGracePeriod  Duration `yaml:"quit_grace_period"`
	HealthTimeout    Duration `yaml:"health_timeout"`
	// HintTime is the movetime of a hint search.
	HintTime Duration `yaml:"hint_time"`
}

// BookSettings configures the opening table.
type BookSettings struct {
	// Path to a table file. Empty disables the book.
	Path      string `yaml:"path,omitempty"`
	MinWeight int    `yaml:"min_weight"`
}

// ProfileOverride replaces parts of a built-in difficulty profile.
type ProfileOverride struct {
	Description string   `yaml:"description,omitempty"`
	TimeBudget  Duration `yaml:"time_budget,omitempty"`
	Depth       *int     `yaml:"depth,omitempty"`
}

// GameSettings describes the game to play.
type GameSettings struct {
	Mode            string                     `yaml:"mode"`
	HumanColor      string                     `yaml:"human_color,omitempty"`
	Difficulty      string                     `yaml:"difficulty,omitempty"`
	WhiteDifficulty string                     `yaml:"white_difficulty,omitempty"`
	BlackDifficulty string                     `yaml:"black_difficulty,omitempty"`
	Difficulties    map[string]ProfileOverride `yaml:"difficulties,omitempty"`
}

// LoggingSettings selects the log backend.
type LoggingSettings struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`  // json, text or console
	Backend   string `yaml:"backend"` // slog or zerolog
	AddSource bool   `yaml:"add_source,omitempty"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Engine: EngineSettings{
			Family:           engine.DefaultEngine,
			EnginesDir:       "engines/stockfish/bin",
			StartupTimeout:   Duration(engine.DefaultConfig.StartupTimeout),
			HandshakeTimeout: Duration(engine.DefaultConfig.HandshakeTimeout),
			QuitGracePeriod:  Duration(engine.DefaultConfig.QuitGracePeriod),
			HealthTimeout:    Duration(engine.DefaultConfig.HealthTimeout),
			HintTime:         Duration(time.Second),
		},
		Book: BookSettings{MinWeight: 1},
		Game: GameSettings{
			Mode:            core.HumanVsComputer.String(),
			HumanColor:      "white",
			Difficulty:      difficulty.Intermediate.String(),
			WhiteDifficulty: difficulty.Intermediate.String(),
			BlackDifficulty: difficulty.Intermediate.String(),
		},
		Logging: LoggingSettings{Level: "info", Format: "text", Backend: "slog"},
	}
}

// Load reads settings from a YAML file on top of Default() and validates
// them.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML settings on top of Default() and validates them.
// Unknown keys are rejected.
func Parse(data []byte) (Settings, error) {
	s := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Write encodes s as YAML.
func (s Settings) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks every section and returns all problems at once.
func (s Settings) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	for name, d := range map[string]Duration{
		"engine.startup_timeout":   s.Engine.StartupTimeout,
		"engine.handshake_timeout": s.Engine.HandshakeTimeout,
		"engine.quit_grace_period": s.Engine.QuitGracePeriod,
		"engine.health_timeout":    s.Engine.HealthTimeout,
		"engine.hint_time":         s.Engine.HintTime,
	} {
		if d <= 0 {
			add("%s must be positive, got %s", name, d)
		}
	}
	if s.Book.MinWeight < 0 {
		add("book.min_weight must not be negative")
	}

	if _, err := s.Catalog(); err != nil {
		add("game.difficulties: %v", err)
	} else if _, err := s.gameConfig(nil); err != nil {
		add("game: %v", err)
	}

	if _, err := logging.ParseLogLevel(s.Logging.Level); err != nil {
		add("logging.level: %v", err)
	}
	if !slices.Contains([]string{"json", "text", "console"}, s.Logging.Format) {
		add("logging.format %q is not json, text or console", s.Logging.Format)
	}
	if !slices.Contains([]string{"slog", "zerolog"}, s.Logging.Backend) {
		add("logging.backend %q is not slog or zerolog", s.Logging.Backend)
	}
	return errors.Join(errs...)
}

// Catalog returns the built-in difficulty catalog with the configured
// overrides applied.
func (s Settings) Catalog() (*difficulty.Catalog, error) {
	cat := difficulty.Default()

	names := make([]string, 0, len(s.Game.Difficulties))
	for name := range s.Game.Difficulties {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		o := s.Game.Difficulties[name]
		level, err := difficulty.ParseLevel(name)
		if err != nil {
			return nil, err
		}
		p, err := cat.Lookup(level)
		if err != nil {
			return nil, err
		}
		if o.Description != "" {
			p.Description = o.Description
		}
		if o.TimeBudget != 0 {
			p.TimeBudget = o.TimeBudget.Std()
		}
		if o.Depth != nil {
			p.Depth = *o.Depth
		}
		if cat, err = cat.With(level, p); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// GameConfig builds the game.Config described by the settings, resolving
// difficulty labels against cat. A nil cat means Catalog().
func (s Settings) GameConfig(cat *difficulty.Catalog) (game.Config, error) {
	return s.gameConfig(cat)
}

func (s Settings) gameConfig(cat *difficulty.Catalog) (game.Config, error) {
	if cat == nil {
		var err error
		if cat, err = s.Catalog(); err != nil {
			return game.Config{}, err
		}
	}
	mode, err := core.ParseGameMode(s.Game.Mode)
	if err != nil {
		return game.Config{}, err
	}
	cfg := game.Config{Mode: mode, HumanColor: chess.NoColor}

	lookup := func(label string) (*difficulty.Profile, error) {
		if label == "" {
			return nil, nil
		}
		p, err := cat.LookupName(label)
		if err != nil {
			return nil, err
		}
		return &p, nil
	}

	switch mode {
	case core.HumanVsHuman:
	case core.HumanVsComputer:
		if cfg.HumanColor, err = ParseColor(s.Game.HumanColor); err != nil {
			return game.Config{}, err
		}
		if cfg.Difficulty, err = lookup(s.Game.Difficulty); err != nil {
			return game.Config{}, err
		}
	case core.ComputerVsComputer:
		if cfg.WhiteDifficulty, err = lookup(s.Game.WhiteDifficulty); err != nil {
			return game.Config{}, err
		}
		if cfg.BlackDifficulty, err = lookup(s.Game.BlackDifficulty); err != nil {
			return game.Config{}, err
		}
	}
	if _, err := game.NewSession(cfg); err != nil {
		return game.Config{}, err
	}
	return cfg, nil
}

// ParseColor resolves "white"/"w" and "black"/"b".
func ParseColor(s string) (chess.Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return chess.White, nil
	case "black", "b":
		return chess.Black, nil
	default:
		return chess.NoColor, fmt.Errorf("%w: unknown color %q", ErrInvalid, s)
	}
}

// EngineConfig returns the worker timing configuration.
func (s Settings) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig
	cfg.StartupTimeout = s.Engine.StartupTimeout.Std()
	cfg.HandshakeTimeout = s.Engine.HandshakeTimeout.Std()
	cfg.QuitGracePeriod = s.Engine.QuitGracePeriod.Std()
	cfg.HealthTimeout = s.Engine.HealthTimeout.Std()
	return cfg
}

// DetectConfig returns the engine discovery configuration.
func (s Settings) DetectConfig() engine.DetectConfig {
	return engine.DetectConfig{
		Engine:      s.Engine.Family,
		EnginesDir:  s.Engine.EnginesDir,
		SearchPaths: s.Engine.SearchPaths,
	}
}

// EnginePath returns the configured engine path, or detects one.
func (s Settings) EnginePath() (string, error) {
	if s.Engine.Path != "" {
		return s.Engine.Path, nil
	}
	return engine.Detect(s.DetectConfig())
}

// NewLogger builds the configured logger writing to w.
func (s Settings) NewLogger(w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLogLevel(s.Logging.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	switch s.Logging.Backend {
	case "zerolog":
		return logging.NewZerologLogger(w, level, s.Logging.Format == "console"), nil
	default:
		cfg := logging.DefaultLoggerConfig()
		cfg.Level = level
		cfg.Output = w
		cfg.AddSource = s.Logging.AddSource
		cfg.Format = s.Logging.Format
		if cfg.Format == "console" {
			cfg.Format = "text"
		}
		return logging.NewLogger(cfg), nil
	}
}
