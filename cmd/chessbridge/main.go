// Command chessbridge plays one game against a UCI engine on the terminal.
//
//	chessbridge -mode cvc -white beginner -black master
//	chessbridge -mode hvc -human black -difficulty advanced -book openings.cbk
//
// In human vs computer games moves are read from stdin in UCI ("e2e4") or
// SAN ("Nf3") notation. Enter "hint" for an engine suggestion, "book" for
// the opening table's choice, or "quit" to resign the session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/chessbridge/config"
)

type flags struct {
	configPath string
	enginePath string
	bookPath   string
	mode       string
	difficulty string
	white      string
	black      string
	human      string
	maxMoves   int
	logLevel   string
	logFormat  string
}

func main() {
	log.SetFlags(0)
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "YAML settings file")
	flag.StringVar(&f.enginePath, "engine", "", "path to the UCI engine (detected when empty)")
	flag.StringVar(&f.bookPath, "book", "", "opening table file")
	flag.StringVar(&f.mode, "mode", "", "game mode: hvh, hvc or cvc")
	flag.StringVar(&f.difficulty, "difficulty", "", "computer difficulty in hvc games")
	flag.StringVar(&f.white, "white", "", "white difficulty in cvc games")
	flag.StringVar(&f.black, "black", "", "black difficulty in cvc games")
	flag.StringVar(&f.human, "human", "", "color played by the human in hvc games")
	flag.IntVar(&f.maxMoves, "max-moves", 200, "stop after this many plies")
	flag.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	flag.StringVar(&f.logFormat, "log-format", "", "json, text or console")
	flag.Parse()

	settings, err := loadSettings(f)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return play(ctx, settings, f.maxMoves, os.Stdin, os.Stdout)
}

func loadSettings(f flags) (config.Settings, error) {
	settings := config.Default()
	if f.configPath != "" {
		var err error
		if settings, err = config.Load(f.configPath); err != nil {
			return config.Settings{}, err
		}
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&settings.Engine.Path, f.enginePath)
	set(&settings.Book.Path, f.bookPath)
	set(&settings.Game.Mode, f.mode)
	set(&settings.Game.Difficulty, f.difficulty)
	set(&settings.Game.WhiteDifficulty, f.white)
	set(&settings.Game.BlackDifficulty, f.black)
	set(&settings.Game.HumanColor, f.human)
	set(&settings.Logging.Level, f.logLevel)
	set(&settings.Logging.Format, f.logFormat)

	if f.maxMoves <= 0 {
		return config.Settings{}, fmt.Errorf("-max-moves must be positive")
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}
