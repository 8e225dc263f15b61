package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"

	"github.com/hupe1980/chessbridge/logging"
)

const lineBuffer = 256

// process is the line protocol client for one engine subprocess. Commands
// are formatted with the notnil/chess/uci command types; replies are read by
// a dedicated goroutine and handed over on lines.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	logger logging.Logger

	writeMu sync.Mutex
	lines   chan string
	closing chan struct{}
	closeMu sync.Once
	exited  chan struct{}
	waitErr error

	options map[string]OptionSpec // keyed by lower-case name
	id      EngineID
}

func launch(path string, args, env []string, logger logging.Logger) (*process, error) {
	cmd := exec.Command(path, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, classifyLaunchError(err)
	}

	p := &process{
		cmd:     cmd,
		stdin:   stdin,
		stderr:  stderr,
		logger:  logger,
		lines:   make(chan string, lineBuffer),
		closing: make(chan struct{}),
		exited:  make(chan struct{}),
		options: make(map[string]OptionSpec),
	}
	go p.readLoop(stdout)
	return p, nil
}

func classifyLaunchError(err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrEngineNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return err
	}
}

// readLoop forwards stdout lines until EOF and then reaps the process.
// Wait must only run once all reads from the pipe are done.
func (p *process) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case p.lines <- line:
		case <-p.closing:
		}
	}
	close(p.lines)
	p.waitErr = p.cmd.Wait()
	close(p.exited)
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) send(cmd fmt.Stringer) error {
	return p.sendLine(cmd.String())
}

func (p *process) sendLine(line string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.logger.Debug("engine <", "line", line)
	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrProcessExited, line, err)
	}
	return nil
}

// await consumes lines until match accepts one.
func (p *process) await(ctx context.Context, match func(string) bool) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case line, ok := <-p.lines:
			if !ok {
				return "", p.exitError()
			}
			p.logger.Debug("engine >", "line", line)
			if match(line) {
				return line, nil
			}
		}
	}
}

func (p *process) exitError() error {
	select {
	case <-p.exited:
		if p.waitErr != nil {
			return fmt.Errorf("%w: %v%s", ErrProcessExited, p.waitErr, p.stderr.suffix())
		}
	case <-time.After(100 * time.Millisecond):
	}
	return fmt.Errorf("%w%s", ErrProcessExited, p.stderr.suffix())
}

// handshake runs uci/uciok, applies options best-effort and waits for
// readyok. Rejected options are returned, never treated as fatal.
func (p *process) handshake(ctx context.Context, options map[string]string) ([]RejectedOption, error) {
	if err := p.send(uci.CmdUCI); err != nil {
		return nil, err
	}
	_, err := p.await(ctx, func(line string) bool {
		switch {
		case strings.HasPrefix(line, "id name "):
			p.id.Name = strings.TrimPrefix(line, "id name ")
		case strings.HasPrefix(line, "id author "):
			p.id.Author = strings.TrimPrefix(line, "id author ")
		case strings.HasPrefix(line, "option "):
			spec, err := parseOption(line)
			if err != nil {
				p.logger.Debug("ignoring malformed option line", "line", line, "error", err)
				return false
			}
			p.options[strings.ToLower(spec.Name)] = spec
		}
		return line == "uciok"
	})
	if err != nil {
		return nil, err
	}

	rejected := p.configure(options)

	if err := p.send(uci.CmdUCINewGame); err != nil {
		return rejected, err
	}
	if err := p.sync(ctx); err != nil {
		return rejected, err
	}
	return rejected, nil
}

func (p *process) configure(options map[string]string) []RejectedOption {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	slices.Sort(names)

	var rejected []RejectedOption
	for _, name := range names {
		value := options[name]
		spec, ok := p.options[strings.ToLower(name)]
		if !ok {
			reason := fmt.Errorf("%w: %s: not supported by engine", ErrOptionRejected, name)
			p.logger.Warn("skipping engine option", "option", name, "value", value, "error", reason)
			rejected = append(rejected, RejectedOption{Name: name, Value: value, Reason: reason})
			continue
		}
		v, err := spec.Validate(value)
		if err != nil {
			p.logger.Warn("skipping engine option", "option", name, "value", value, "error", err)
			rejected = append(rejected, RejectedOption{Name: name, Value: value, Reason: err})
			continue
		}
		if err := p.send(uci.CmdSetOption{Name: spec.Name, Value: v}); err != nil {
			p.logger.Warn("failed to send engine option", "option", name, "error", err)
			rejected = append(rejected, RejectedOption{Name: name, Value: value, Reason: err})
			continue
		}
		p.logger.Debug("engine option applied", "option", spec.Name, "value", v)
	}
	return rejected
}

func (p *process) sync(ctx context.Context) error {
	if err := p.send(uci.CmdIsReady); err != nil {
		return err
	}
	_, err := p.await(ctx, func(line string) bool { return line == "readyok" })
	return err
}

// search sends the position and limit and returns the engine's best move in
// UCI notation, or "" when the engine reports none.
func (p *process) search(ctx context.Context, pos *chess.Position, limit Limit) (string, error) {
	if err := p.send(uci.CmdPosition{Position: pos}); err != nil {
		return "", err
	}
	var goCmd uci.CmdGo
	if limit.Depth > 0 {
		goCmd.Depth = limit.Depth
	} else {
		goCmd.MoveTime = limit.Time
	}
	if err := p.send(goCmd); err != nil {
		return "", err
	}
	line, err := p.await(ctx, func(line string) bool { return strings.HasPrefix(line, "bestmove") })
	if err != nil {
		return "", err
	}
	return parseBestMove(line), nil
}

func parseBestMove(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	switch fields[1] {
	case "(none)", "0000", "none":
		return ""
	default:
		return fields[1]
	}
}

// terminate asks the engine to quit and kills it if it has not exited
// within grace.
func (p *process) terminate(grace time.Duration) error {
	p.closeMu.Do(func() { close(p.closing) })

	if err := p.send(uci.CmdQuit); err != nil {
		p.logger.Debug("quit not delivered", "error", err)
	}
	_ = p.stdin.Close()

	select {
	case <-p.exited:
		return nil
	case <-time.After(grace):
	}

	p.logger.Warn("engine ignored quit, killing process", "pid", p.pid(), "grace", grace)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	select {
	case <-p.exited:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("engine process %d did not exit after kill", p.pid())
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(b), nil
}

func (t *tailBuffer) suffix() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := strings.TrimSpace(string(t.buf))
	if s == "" {
		return ""
	}
	return ": " + s
}
