package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notnil/chess"

	"github.com/hupe1980/chessbridge/logging"
)

// Config defines the timing and buffering parameters of a Worker.
//
// Every blocking step of the worker is bounded by one of these values so
// that a misbehaving engine can never hang the caller:
//   - StartupTimeout bounds the whole Start call
//   - HandshakeTimeout bounds the uci/isready exchange
//   - QuitGracePeriod is how long Stop waits after "quit" before killing
//   - JoinTimeout bounds the wait for the scheduler goroutine to exit
//   - HealthTimeout bounds IsHealthy
//
// Example:
//
//	cfg := engine.DefaultConfig
//	cfg.HandshakeTimeout = 30 * time.Second
//	w := engine.New("/usr/bin/stockfish", func(o *engine.Options) {
//	    o.Config = cfg
//	})
type Config struct {
	StartupTimeout   time.Duration
	HandshakeTimeout time.Duration
	QuitGracePeriod  time.Duration
	JoinTimeout      time.Duration

	// HealthTimeout bounds the probe search run by IsHealthy.
	HealthTimeout time.Duration

	// HealthProbeBudget is the movetime of the probe search.
	HealthProbeBudget time.Duration

	// RequestBuffer is the capacity of the scheduler's job queue. Async
	// submissions beyond it are handed over in the background.
	RequestBuffer int
}

// DefaultConfig provides the default timing values.
//
// Configuration values:
//   - StartupTimeout: 15s
//   - HandshakeTimeout: 10s
//   - QuitGracePeriod: 2s
//   - JoinTimeout: 3s
//   - HealthTimeout: 2s with a 1ms probe
//   - RequestBuffer: 16
var DefaultConfig = Config{
	StartupTimeout:    15 * time.Second,
	HandshakeTimeout:  10 * time.Second,
	QuitGracePeriod:   2 * time.Second,
	JoinTimeout:       3 * time.Second,
	HealthTimeout:     2 * time.Second,
	HealthProbeBudget: time.Millisecond,
	RequestBuffer:     16,
}

// Options configures a Worker using the functional options pattern.
//
// Example:
//
//	w := engine.New(path, func(o *engine.Options) {
//	    o.Options = map[string]string{"Hash": "128", "Threads": "2"}
//	    o.Dispatcher = engine.NewQueueDispatcher(8)
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains timing parameters. Defaults to DefaultConfig; zero
	// fields fall back to their defaults individually.
	Config Config

	// Options are UCI options applied best-effort after the handshake.
	// Unknown names and invalid values are logged and skipped.
	Options map[string]string

	// Args are passed to the engine executable.
	Args []string

	// Env entries are appended to the current environment of the engine
	// process.
	Env []string

	// Dispatcher decides where completion callbacks run. Defaults to
	// DirectDispatcher.
	Dispatcher Dispatcher

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// job is a unit of work executed on the scheduler goroutine, which owns
// the engine process exclusively.
type job func(ctx context.Context, p *process)

// Worker owns one external engine process and serializes all traffic to it.
//
// Concurrency Model:
//   - A single scheduler goroutine executes jobs received on a channel, so
//     at most one search is outstanding on the process at any time
//   - Callers block on a per-request completion channel (SearchMove) or
//     receive an Outcome through the Dispatcher (SearchMoveAsync)
//   - Each request completes exactly once: with the engine's result, the
//     adaptive deadline, explicit cancellation or Stop, whichever is first
//   - Start and Stop are serialized by a lifecycle mutex and may be called
//     from any goroutine
//
// Cancellation is cooperative: the engine is never interrupted mid-search
// on behalf of a cancelled request. Its eventual result is discarded.
type Worker struct {
	path       string
	opts       Options
	logger     logging.Logger
	dispatcher Dispatcher
	registry   *registry

	lifecycle sync.Mutex

	mu       sync.RWMutex
	state    State
	proc     *process
	jobs     chan job
	cancel   context.CancelFunc
	loopDone chan struct{}
	id       EngineID
	rejected []RejectedOption
}

// New creates a stopped Worker for the engine executable at path.
func New(path string, optFns ...func(o *Options)) *Worker {
	opts := Options{Config: DefaultConfig}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Config = opts.Config.withDefaults()

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = DirectDispatcher{}
	}

	return &Worker{
		path:       path,
		opts:       opts,
		logger:     opts.Logger,
		dispatcher: opts.Dispatcher,
		registry:   newRegistry(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = d.StartupTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.QuitGracePeriod <= 0 {
		c.QuitGracePeriod = d.QuitGracePeriod
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = d.JoinTimeout
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = d.HealthTimeout
	}
	if c.HealthProbeBudget <= 0 {
		c.HealthProbeBudget = d.HealthProbeBudget
	}
	if c.RequestBuffer <= 0 {
		c.RequestBuffer = d.RequestBuffer
	}
	return c
}

// Path returns the engine executable path.
func (w *Worker) Path() string { return w.path }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Pending returns the number of searches that have not completed yet.
func (w *Worker) Pending() int { return w.registry.len() }

// EngineID returns the name and author reported during the handshake.
func (w *Worker) EngineID() EngineID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.id
}

// Rejected returns the options skipped during the last successful start.
func (w *Worker) Rejected() []RejectedOption {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]RejectedOption, len(w.rejected))
	copy(out, w.rejected)
	return out
}

// PID returns the engine process id, or 0 when no process is running.
func (w *Worker) PID() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.proc == nil {
		return 0
	}
	return w.proc.pid()
}

func (w *Worker) setState(s State) State {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.state
	w.state = s
	return prev
}

func (w *Worker) logTransition(from, to State, err error) {
	if sl, ok := w.logger.(*logging.StructuredLogger); ok {
		sl.LogEngineLifecycle(w.path, from.String(), to.String(), err)
		return
	}
	if err != nil {
		w.logger.Warn("engine state changed", "path", w.path, "from", from.String(), "to", to.String(), "error", err)
		return
	}
	w.logger.Info("engine state changed", "path", w.path, "from", from.String(), "to", to.String())
}

// Start launches the engine and completes the UCI handshake. It returns
// nil immediately when the worker is already running. On failure every
// resource created so far is released, the worker is Stopped again and the
// returned error is a *StartupError.
func (w *Worker) Start(ctx context.Context) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.State() == Running {
		return nil
	}

	cfg := w.opts.Config
	from := w.setState(Starting)
	w.logTransition(from, Starting, nil)

	var handshakeDone func()
	if sl, ok := w.logger.(*logging.StructuredLogger); ok {
		handshakeDone = sl.StartTimer("engine handshake")
	}

	p, err := launch(w.path, w.opts.Args, w.opts.Env, w.logger)
	if err != nil {
		return w.failStart(nil, nil, nil, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	jobs := make(chan job, cfg.RequestBuffer)
	done := make(chan struct{})
	go w.loop(loopCtx, p, jobs, done)

	type handshakeResult struct {
		rejected []RejectedOption
		err      error
	}
	result := make(chan handshakeResult, 1)
	jobs <- func(ctx context.Context, p *process) {
		hsCtx, hsCancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer hsCancel()
		rejected, err := p.handshake(hsCtx, w.opts.Options)
		result <- handshakeResult{rejected: rejected, err: err}
	}

	startCtx, startCancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer startCancel()

	var hs handshakeResult
	select {
	case hs = <-result:
	case <-startCtx.Done():
		hs.err = startCtx.Err()
	}
	if hs.err != nil {
		return w.failStart(p, cancel, done, hs.err)
	}

	w.mu.Lock()
	w.state = Running
	w.proc = p
	w.jobs = jobs
	w.cancel = cancel
	w.loopDone = done
	w.id = p.id
	w.rejected = hs.rejected
	w.mu.Unlock()

	w.logTransition(Starting, Running, nil)
	if handshakeDone != nil {
		handshakeDone()
	}
	w.logger.Info("engine ready", "path", w.path, "name", p.id.Name, "pid", p.pid(), "rejected_options", len(hs.rejected))
	return nil
}

func (w *Worker) failStart(p *process, cancel context.CancelFunc, done chan struct{}, cause error) error {
	if cancel != nil {
		cancel()
	}
	if p != nil {
		if err := p.terminate(w.opts.Config.QuitGracePeriod); err != nil {
			w.logger.Warn("failed to terminate engine after startup failure", "path", w.path, "error", err)
		}
	}
	if done != nil {
		w.join(done)
	}

	serr := &StartupError{Path: w.path, Reason: startupReason(cause), Err: cause}
	w.setState(Stopped)
	w.logTransition(Starting, Stopped, serr)
	return serr
}

func startupReason(err error) error {
	switch {
	case errors.Is(err, ErrEngineNotFound):
		return ErrEngineNotFound
	case errors.Is(err, ErrPermissionDenied):
		return ErrPermissionDenied
	case errors.Is(err, context.DeadlineExceeded):
		return ErrHandshakeTimeout
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	default:
		return ErrProcessExited
	}
}

// Stop cancels all pending searches, asks the engine to quit and releases
// the process. It is safe to call in any state, repeatedly and
// concurrently, and never fails; problems are logged.
func (w *Worker) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	if w.state != Running {
		w.mu.Unlock()
		return
	}
	w.state = ShuttingDown
	p, cancel, done := w.proc, w.cancel, w.loopDone
	w.proc, w.jobs, w.cancel, w.loopDone = nil, nil, nil, nil
	w.mu.Unlock()
	w.logTransition(Running, ShuttingDown, nil)

	if n := w.registry.cancelAll(ErrCancelled); n > 0 {
		w.logger.Info("cancelled pending searches", "path", w.path, "count", n)
	}

	cancel()
	if err := p.terminate(w.opts.Config.QuitGracePeriod); err != nil {
		if sl, ok := w.logger.(*logging.StructuredLogger); ok {
			sl.ErrorWithStack(err, "engine did not terminate", "path", w.path)
		} else {
			w.logger.Error("engine did not terminate", "path", w.path, "error", err)
		}
	}
	w.join(done)

	w.setState(Stopped)
	w.logTransition(ShuttingDown, Stopped, nil)
}

func (w *Worker) join(done <-chan struct{}) {
	select {
	case <-done:
	case <-time.After(w.opts.Config.JoinTimeout):
		w.logger.Warn("engine scheduler did not exit in time", "path", w.path, "timeout", w.opts.Config.JoinTimeout)
	}
}

func (w *Worker) loop(ctx context.Context, p *process, jobs <-chan job, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-jobs:
			j(ctx, p)
		}
	}
}

// submit registers a request and hands it to the scheduler. Terminal
// positions complete immediately with no move. When async is false the
// caller's ctx bounds the enqueue.
func (w *Worker) submit(ctx context.Context, pos *chess.Position, limit Limit, onDone func(Outcome), async bool) (*request, error) {
	if pos == nil {
		return nil, errors.New("engine: nil position")
	}
	limit = limit.normalized()

	w.mu.RLock()
	if w.state != Running {
		w.mu.RUnlock()
		return nil, ErrNotRunning
	}
	jobs := w.jobs
	req := newRequest(uuid.NewString(), pos, limit, onDone, w.dispatcher, w.registry)
	if len(pos.ValidMoves()) == 0 {
		w.mu.RUnlock()
		req.complete(Outcome{})
		return req, nil
	}
	w.registry.add(req)
	w.mu.RUnlock()

	req.arm(limit.Timeout())

	j := w.searchJob(req)
	select {
	case jobs <- j:
	case <-req.done:
	default:
		if async {
			go func() {
				select {
				case jobs <- j:
				case <-req.done:
				}
			}()
			return req, nil
		}
		select {
		case jobs <- j:
		case <-req.done:
		case <-ctx.Done():
			req.complete(Outcome{Err: fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())})
		}
	}
	return req, nil
}

func (w *Worker) searchJob(req *request) job {
	return func(ctx context.Context, p *process) {
		if req.isDone() {
			w.logger.Debug("skipping completed search", "request_id", req.id)
			return
		}

		start := time.Now()
		searchCtx, cancel := context.WithTimeout(ctx, req.limit.Timeout())
		move, err := p.search(searchCtx, req.pos, req.limit)
		cancel()

		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			w.drain(ctx, p)
		}

		o := w.outcome(req, move, err)
		if !req.complete(o) {
			w.logger.Debug("discarding late search result", "request_id", req.id, "move", move)
			return
		}

		if sl, ok := w.logger.(*logging.StructuredLogger); ok {
			sl.LogSearch(req.pos.String(), req.limit.String(), time.Since(start), move, o.Err)
			return
		}
		fields := []any{"request_id", req.id, "limit", req.limit.String(), "duration", time.Since(start)}
		if o.Err != nil {
			w.logger.Warn("search failed", append(fields, "error", o.Err)...)
			return
		}
		w.logger.Debug("search completed", append(fields, "move", move)...)
	}
}

// drain stops a search that overran its deadline and consumes its bestmove
// so it cannot be mistaken for the reply to the next request.
func (w *Worker) drain(ctx context.Context, p *process) {
	if err := p.sendLine("stop"); err != nil {
		return
	}
	dctx, cancel := context.WithTimeout(ctx, w.opts.Config.JoinTimeout)
	defer cancel()
	if _, err := p.await(dctx, func(line string) bool { return strings.HasPrefix(line, "bestmove") }); err != nil {
		w.logger.Warn("engine did not answer stop", "path", w.path, "error", err)
	}
}

func (w *Worker) outcome(req *request, move string, err error) Outcome {
	switch {
	case err == nil && move == "":
		return Outcome{Err: &SearchError{Op: "search", Err: ErrNoResult}}
	case err == nil:
		for _, m := range req.pos.ValidMoves() {
			if m.String() == move {
				return Outcome{Move: m}
			}
		}
		return Outcome{Err: &SearchError{Op: "search", Move: move, Err: ErrIllegalMove}}
	case errors.Is(err, context.DeadlineExceeded):
		return Outcome{Err: &SearchError{Op: "search", Timeout: req.limit.Timeout(), Err: ErrSearchTimeout}}
	case errors.Is(err, context.Canceled):
		return Outcome{Err: ErrCancelled}
	default:
		return Outcome{Err: &SearchError{Op: "search", Err: err}}
	}
}

// SearchMove asks the engine for the best move in pos and blocks until the
// result, the adaptive deadline or ctx, whichever comes first. A nil move
// with a nil error means pos has no legal moves.
func (w *Worker) SearchMove(ctx context.Context, pos *chess.Position, limit Limit) (*chess.Move, error) {
	req, err := w.submit(ctx, pos, limit, nil, false)
	if err != nil {
		return nil, err
	}

	select {
	case <-req.done:
	case <-ctx.Done():
		req.complete(Outcome{Err: fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())})
	}

	<-req.done
	return req.outcome.Move, req.outcome.Err
}

// SearchMoveAsync submits a search and returns immediately. onDone is
// invoked exactly once through the worker's Dispatcher.
func (w *Worker) SearchMoveAsync(pos *chess.Position, limit Limit, onDone func(Outcome)) (*Handle, error) {
	req, err := w.submit(context.Background(), pos, limit, onDone, true)
	if err != nil {
		return nil, err
	}
	return &Handle{req: req}, nil
}

// IsHealthy runs a minimal probe search on the starting position. It is
// intended for diagnostics, not for the move path.
func (w *Worker) IsHealthy(ctx context.Context) bool {
	if w.State() != Running {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, w.opts.Config.HealthTimeout)
	defer cancel()

	m, err := w.SearchMove(ctx, chess.NewGame().Position(), Limit{Time: w.opts.Config.HealthProbeBudget})
	if err != nil {
		w.logger.Warn("engine health probe failed", "path", w.path, "error", err)
		return false
	}
	return m != nil
}
