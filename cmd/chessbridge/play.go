package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/notnil/chess"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chessbridge"
	"github.com/hupe1980/chessbridge/board"
	"github.com/hupe1980/chessbridge/config"
	"github.com/hupe1980/chessbridge/core"
	"github.com/hupe1980/chessbridge/engine"
	"github.com/hupe1980/chessbridge/orchestrator"
)

var errQuit = errors.New("quit")

type turnResult struct {
	res orchestrator.Result
	err error
}

// lockedWriter serializes writes from the game loop and the event printer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func play(ctx context.Context, settings config.Settings, maxPlies int, in io.Reader, w io.Writer) error {
	out := &lockedWriter{w: w}

	logger, err := settings.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	dispatcher := engine.NewQueueDispatcher(16)
	// runs after bridge.Close so late cancellation callbacks are dropped
	defer dispatcher.Close()
	bridge, err := chessbridge.New(settings, func(o *chessbridge.Options) {
		o.Dispatcher = dispatcher
		o.Logger = logger
	})
	if err != nil {
		return err
	}
	defer bridge.Close()

	sess := bridge.Session()
	if sess.Mode() != core.HumanVsHuman {
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		id := bridge.Worker().EngineID()
		fmt.Fprintf(out, "engine: %s by %s\n", id.Name, id.Author)
	}
	fmt.Fprintf(out, "game %s: %s\n", sess.ID(), sess)

	events, closeEvents := bridge.Publisher().Channel(64)

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(gctx)

	g.Go(func() error {
		if err := dispatcher.Run(loopCtx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		printEvents(out, events)
		return nil
	})

	g.Go(func() error {
		defer stopLoop()
		defer closeEvents()
		return gameLoop(gctx, bridge, maxPlies, in, out)
	})

	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "game abandoned")
		return nil
	}
	return err
}

func gameLoop(ctx context.Context, bridge *chessbridge.Bridge, maxPlies int, in io.Reader, out io.Writer) error {
	bd := bridge.NewBoard()
	results := make(chan turnResult, 1)

	var input <-chan string
	for ply := 0; ply < maxPlies; ply++ {
		if bd.IsTerminal() {
			printOutcome(out, bd)
			return nil
		}

		if bridge.IsComputerTurn(bd) {
			err := bridge.PlayTurnAsync(bd, func(res orchestrator.Result, err error) {
				results <- turnResult{res: res, err: err}
			})
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				bridge.Orchestrator().Cancel()
				return ctx.Err()
			case r := <-results:
				if r.err != nil {
					return fmt.Errorf("computer move: %w", r.err)
				}
			}
			continue
		}

		if input == nil {
			input = readLines(in)
		}
		if err := humanMove(ctx, bridge, bd, input, out); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "move limit of %d plies reached\n", maxPlies)
	fmt.Fprintln(out, bd.PGN())
	return nil
}

func humanMove(ctx context.Context, bridge *chessbridge.Bridge, bd *board.Game, input <-chan string, out io.Writer) error {
	for {
		fmt.Fprintf(out, "%s to move> ", bd.SideToMove().Name())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-input:
			if !ok || line == "quit" {
				return errQuit
			}
			switch line {
			case "":
				continue
			case "hint":
				if _, err := bridge.Hint(ctx, bd); err != nil {
					fmt.Fprintf(out, "%v\n", err)
				}
				continue
			case "book":
				if _, ok, err := bridge.BookHint(bd); err != nil {
					fmt.Fprintf(out, "%v\n", err)
				} else if !ok {
					fmt.Fprintln(out, "no book moves")
				}
				continue
			}
			if _, err := bridge.ApplyHumanMove(bd, line); err != nil {
				fmt.Fprintf(out, "%v\n", err)
				continue
			}
			return nil
		}
	}
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- strings.TrimSpace(scanner.Text())
		}
	}()
	return ch
}

func printEvents(out io.Writer, events <-chan core.Event) {
	for ev := range events {
		switch ev.Kind {
		case core.KindMoveApplied:
			fmt.Fprintf(out, "%s %s (%s)\n", moveNumber(ev.Position), ev.SAN, ev.Source)
		case core.KindComputerThinking:
			if ev.Thinking {
				fmt.Fprintln(out, "engine thinking...")
			}
		case core.KindSearchFailed:
			fmt.Fprintf(out, "search failed: %s\n", ev.Reason)
		case core.KindHintReady:
			fmt.Fprintf(out, "hint: %s (%s)\n", ev.SAN, ev.Source)
		}
	}
}

// moveNumber renders "12." or "12..." for the move that led to fen.
func moveNumber(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return "?"
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil {
		return "?"
	}
	if fields[1] == "w" {
		return fmt.Sprintf("%d...", n-1)
	}
	return fmt.Sprintf("%d.", n)
}

func printOutcome(out io.Writer, bd *board.Game) {
	outcome, method := bd.Outcome()
	if outcome == chess.NoOutcome {
		fmt.Fprintln(out, "no legal moves")
	} else {
		fmt.Fprintf(out, "game over: %s by %s\n", outcome, method)
	}
	fmt.Fprintln(out, bd.PGN())
}
