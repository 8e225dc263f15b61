package testutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/notnil/chess"
)

// Environment variables understood by the fake engine.
const (
	FakeEngineModeEnv  = "CHESSBRIDGE_FAKE_ENGINE"
	FakeEngineLogEnv   = "CHESSBRIDGE_FAKE_ENGINE_LOG"
	FakeEngineDelayEnv = "CHESSBRIDGE_FAKE_ENGINE_DELAY"
)

// Fake engine behaviours.
const (
	ModeNormal  = "normal"  // well-behaved engine, plays the first legal move
	ModeSilent  = "silent"  // never writes anything
	ModeIllegal = "illegal" // answers every go with an illegal move
	ModeSlow    = "slow"    // waits DELAY (or until stop) before answering
	ModeCrash   = "crash"   // exits with status 3 on the first go
	ModeNone    = "none"    // answers every go with bestmove (none)
	ModeNoQuit  = "noquit"  // ignores quit and stdin EOF
	ModeExit    = "exit"    // exits during the handshake
)

// MaybeRunFakeEngine turns the current process into a fake UCI engine when
// FakeEngineModeEnv is set, and exits once the engine is done. Call it from
// TestMain so the test binary can serve as its own engine executable:
//
//	func TestMain(m *testing.M) {
//	    testutil.MaybeRunFakeEngine()
//	    os.Exit(m.Run())
//	}
func MaybeRunFakeEngine() {
	mode := os.Getenv(FakeEngineModeEnv)
	if mode == "" {
		return
	}
	delay := 30 * time.Second
	if d, err := time.ParseDuration(os.Getenv(FakeEngineDelayEnv)); err == nil {
		delay = d
	}
	fe := &fakeEngine{
		mode:    mode,
		delay:   delay,
		out:     os.Stdout,
		logPath: os.Getenv(FakeEngineLogEnv),
		pos:     chess.NewGame().Position(),
	}
	os.Exit(fe.run(os.Stdin))
}

// FakeEngineEnv returns the environment entries that select a fake engine
// mode and, optionally, a command log file.
func FakeEngineEnv(mode, logPath string) []string {
	env := []string{FakeEngineModeEnv + "=" + mode}
	if logPath != "" {
		env = append(env, FakeEngineLogEnv+"="+logPath)
	}
	return env
}

// FakeEngineLog returns the commands recorded by a fake engine.
func FakeEngineLog(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// CountLogged returns how many recorded command lines start with prefix.
func CountLogged(path, prefix string) int {
	n := 0
	for _, l := range FakeEngineLog(path) {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

type fakeEngine struct {
	mode    string
	delay   time.Duration
	out     io.Writer
	logPath string
	pos     *chess.Position
}

func (fe *fakeEngine) run(in io.Reader) int {
	fe.record("start")

	commands := make(chan string)
	go func() {
		defer close(commands)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				commands <- line
			}
		}
	}()

	for line := range commands {
		fields := strings.Fields(line)
		fe.record(line)

		if fe.mode == ModeSilent {
			continue
		}

		switch fields[0] {
		case "uci":
			if fe.mode == ModeExit {
				fmt.Fprintln(os.Stderr, "fake engine: refusing to start")
				return 2
			}
			fe.println("id name FakeFish 1.0")
			fe.println("id author chessbridge")
			fe.println("option name Hash type spin default 16 min 1 max 1024")
			fe.println("option name Threads type spin default 1 min 1 max 8")
			fe.println("option name Ponder type check default false")
			fe.println("option name Style type combo default Normal var Solid var Normal var Risky")
			fe.println("uciok")
		case "isready":
			fe.println("readyok")
		case "position":
			if err := fe.setPosition(fields[1:]); err != nil {
				fmt.Fprintln(os.Stderr, "fake engine:", err)
			}
		case "go":
			if code, exit := fe.search(commands); exit {
				return code
			}
		case "quit":
			if fe.mode == ModeNoQuit {
				continue
			}
			return 0
		}
	}

	if fe.mode == ModeNoQuit {
		time.Sleep(time.Hour)
	}
	return 0
}

func (fe *fakeEngine) search(commands <-chan string) (int, bool) {
	switch fe.mode {
	case ModeCrash:
		fmt.Fprintln(os.Stderr, "fake engine: segmentation fault")
		return 3, true
	case ModeNone:
		fe.println("bestmove (none)")
		return 0, false
	case ModeIllegal:
		fe.println("bestmove a1a1")
		return 0, false
	case ModeSlow:
		timer := time.NewTimer(fe.delay)
		defer timer.Stop()
	wait:
		for {
			select {
			case <-timer.C:
				break wait
			case line, ok := <-commands:
				if !ok {
					return 0, true
				}
				fe.record(line)
				if line == "stop" {
					break wait
				}
			}
		}
	}

	moves := fe.pos.ValidMoves()
	if len(moves) == 0 {
		fe.println("bestmove (none)")
		return 0, false
	}
	fe.println("info depth 1 score cp 0 pv " + moves[0].String())
	fe.println("bestmove " + moves[0].String())
	return 0, false
}

func (fe *fakeEngine) setPosition(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("empty position command")
	}
	var (
		game *chess.Game
		rest []string
	)
	switch fields[0] {
	case "startpos":
		game = chess.NewGame()
		rest = fields[1:]
	case "fen":
		end := len(fields)
		for i, f := range fields {
			if f == "moves" {
				end = i
				break
			}
		}
		fen, err := chess.FEN(strings.Join(fields[1:end], " "))
		if err != nil {
			return err
		}
		game = chess.NewGame(fen)
		rest = fields[end:]
	default:
		return fmt.Errorf("unknown position %q", fields[0])
	}

	if len(rest) > 0 && rest[0] == "moves" {
		for _, s := range rest[1:] {
			m, err := chess.UCINotation{}.Decode(game.Position(), s)
			if err != nil {
				return err
			}
			if err := game.Move(m); err != nil {
				return err
			}
		}
	}
	fe.pos = game.Position()
	return nil
}

func (fe *fakeEngine) println(s string) {
	fmt.Fprintln(fe.out, s)
}

func (fe *fakeEngine) record(cmd string) {
	if fe.logPath == "" {
		return
	}
	f, err := os.OpenFile(fe.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, cmd)
}
