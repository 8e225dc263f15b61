// Command bookgen builds an opening table from lines of SAN moves.
//
//	bookgen -output openings.cbk -plies 12 -compress
//	bookgen -input repertoire.txt -output repertoire.cbk
//
// Every (position, move) pair along each line is added with weight one, so
// moves shared by several lines end up with a higher weight. Without
// -input the built-in list of main lines is used.
package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/notnil/chess"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chessbridge/book"
)

//go:embed openings.txt
var openingsTxt string

type entry struct {
	pos  *chess.Position
	move *chess.Move
}

func main() {
	log.SetFlags(0)
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		input    = flag.String("input", "", "text file with one opening per line (defaults to the built-in list)")
		output   = flag.String("output", "openings.cbk", "table file to write")
		plies    = flag.Int("plies", 16, "maximum number of plies taken from each line")
		compress = flag.Bool("compress", false, "store the table zstd compressed")
	)
	flag.Parse()

	text := openingsTxt
	if *input != "" {
		data, err := os.ReadFile(*input)
		if err != nil {
			return err
		}
		text = string(data)
	}
	if *plies <= 0 {
		return fmt.Errorf("-plies must be positive")
	}

	w := book.NewWriter(func(o *book.WriterOptions) { o.Compress = *compress })
	n, err := build(context.Background(), getOpenings(text), *plies, w)
	if err != nil {
		return err
	}
	if err := w.WriteFile(*output); err != nil {
		return err
	}
	log.Printf("%d lines, %d entries written to %s", n, w.Len(), *output)
	return nil
}

// build replays the openings and adds their moves to w. It returns the
// number of lines read.
func build(ctx context.Context, openings []string, plies int, w *book.Writer) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	entries := make(chan entry)

	g.Go(func() error {
		defer close(entries)
		for i, line := range openings {
			if err := replay(ctx, line, plies, entries); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		return nil
	})

	g.Go(func() error {
		for e := range entries {
			if err := w.Add(e.pos, e.move, 1); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(openings), nil
}

func replay(ctx context.Context, line string, plies int, entries chan<- entry) error {
	game := chess.NewGame()
	for i, san := range sanMoves(line) {
		if i >= plies {
			break
		}
		pos := game.Position()
		m, err := chess.AlgebraicNotation{}.Decode(pos, san)
		if err != nil {
			return fmt.Errorf("%s: %w", san, err)
		}
		if err := game.Move(m); err != nil {
			return fmt.Errorf("%s: %w", san, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entries <- entry{pos: pos, move: m}:
		}
	}
	return nil
}

// sanMoves strips move numbers ("1.", "12...", "3.e4") from a line.
func sanMoves(line string) []string {
	var moves []string
	for _, tok := range strings.Fields(line) {
		if i := strings.LastIndex(tok, "."); i >= 0 {
			tok = tok[i+1:]
		}
		if tok != "" {
			moves = append(moves, tok)
		}
	}
	return moves
}

func getOpenings(text string) []string {
	var result []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !(line == "" || strings.HasPrefix(line, "//")) {
			result = append(result, line)
		}
	}
	return result
}
