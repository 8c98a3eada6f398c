package cliserver

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/qlcli/internal/log"
	"github.com/zjrosen/qlcli/internal/tracing"
)

// LineHandler inspects one chunk of worker stdout. A non-empty return value is
// written back to the worker's stdin followed by a newline, and the chunk is
// left out of the command's result.
type LineHandler func(ctx context.Context, line string) string

// Command is a single request for the cli-server worker.
type Command struct {
	// ID correlates log lines and spans. Assigned by the Queue when empty.
	ID string
	// Command holds the subcommand tokens, e.g. ["resolve", "queries"].
	Command []string
	Args    []string
	// Description names the command in errors and logs.
	Description string
	OnLine      LineHandler
	// Silent suppresses the routine log lines for this command.
	Silent bool
}

// argv is the full argument vector sent to the worker.
func (c Command) argv() []string {
	argv := make([]string, 0, len(c.Command)+len(loggingFlags)+len(c.Args))
	argv = append(argv, c.Command...)
	argv = append(argv, loggingFlags...)
	argv = append(argv, c.Args...)
	return argv
}

// PathResolver returns the codeql executable without checking its version.
type PathResolver interface {
	CodeQLPathWithoutVersionCheck(ctx context.Context) (string, error)
}

// Channel owns the persistent cli-server worker. It runs one command at a
// time; concurrent callers must go through a Queue.
type Channel struct {
	paths   PathResolver
	factory CommandFactoryFunc

	mu     sync.Mutex
	w      *worker
	busy   bool
	closed bool
}

// NewChannel creates a Channel. The worker is started on the first Execute.
func NewChannel(paths PathResolver, factory CommandFactoryFunc) *Channel {
	if factory == nil {
		factory = defaultCommandFactory
	}
	return &Channel{paths: paths, factory: factory}
}

// commandRun is the per-command state attached to the worker's output.
type commandRun struct {
	w      *worker
	cmd    Command
	ctx    context.Context
	chunks chan []byte
	stderr strings.Builder
	errMu  sync.Mutex
	// done is closed once the terminal chunk has been queued.
	done chan struct{}
	once sync.Once
	// stop is closed when Execute returns so a late handler call never blocks.
	stop chan struct{}
}

func (r *commandRun) onStdout(chunk []byte) {
	if r.cmd.OnLine != nil {
		if reply := r.cmd.OnLine(r.ctx, string(chunk)); reply != "" {
			if err := r.w.write([]byte(reply + "\n")); err != nil {
				log.Warn(log.CatServer, "Failed to write prompt reply", "id", r.cmd.ID, "error", err)
			} else {
				trace.SpanFromContext(r.ctx).AddEvent(tracing.EventPromptAnswered)
			}
			if isFrameEnd(chunk) {
				r.once.Do(func() { close(r.done) })
			}
			return
		}
	}
	select {
	case r.chunks <- chunk:
	case <-r.stop:
		return
	}
	if isFrameEnd(chunk) {
		r.once.Do(func() { close(r.done) })
	}
}

func (r *commandRun) onStderr(chunk []byte) {
	r.errMu.Lock()
	r.stderr.Write(chunk)
	r.errMu.Unlock()
}

func (r *commandRun) stderrText() string {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.stderr.String()
}

// collect drains every chunk queued so far.
func (r *commandRun) collect(into [][]byte) [][]byte {
	for {
		select {
		case c := <-r.chunks:
			into = append(into, c)
		default:
			return into
		}
	}
}

// Execute sends cmd to the worker and waits for the framed response. A running
// command is not interruptible; ctx is only handed to the line handler.
func (c *Channel) Execute(ctx context.Context, cmd Command) (string, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return "", ErrCommandInFlight
	}
	if c.closed {
		c.mu.Unlock()
		return "", ErrServerClosed
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	argv := cmd.argv()
	w, err := c.ensureStarted(ctx)
	if err != nil {
		return "", &CommandError{Description: cmd.Description, Args: argv, Err: err}
	}

	if !cmd.Silent {
		log.Info(log.CatServer, "Running command", "id", cmd.ID, "args", strings.Join(argv, " "))
	}

	run := &commandRun{
		w:      w,
		cmd:    cmd,
		ctx:    ctx,
		chunks: make(chan []byte, 256),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	chunks := make([][]byte, 0, 4)
	detach := w.attach(run.onStdout, run.onStderr)
	defer func() {
		detach()
		close(run.stop)
	}()

	frame, err := encodeRequest(argv)
	if err != nil {
		return "", &CommandError{Description: cmd.Description, Args: argv, Err: err}
	}
	if err := w.write(frame); err != nil {
		c.teardown(w)
		return "", c.failure(cmd, argv, run, err)
	}

	for {
		select {
		case chunk := <-run.chunks:
			chunks = append(chunks, chunk)
			if isFrameEnd(chunk) {
				return c.success(cmd, run, chunks), nil
			}
		case <-run.done:
			// Terminal chunk was a prompt line; anything queued before it is
			// still part of the result.
			chunks = run.collect(chunks)
			return c.success(cmd, run, chunks), nil
		case <-w.exited:
			chunks = run.collect(chunks)
			if len(chunks) > 0 && isFrameEnd(chunks[len(chunks)-1]) {
				return c.success(cmd, run, chunks), nil
			}
			c.teardown(w)
			return "", c.failure(cmd, argv, run, w.exitError())
		}
	}
}

func (c *Channel) success(cmd Command, run *commandRun, chunks [][]byte) string {
	if !cmd.Silent {
		log.Info(log.CatServer, "Command completed", "id", cmd.ID, "description", cmd.Description)
		if stderr := run.stderrText(); stderr != "" {
			log.Debug(log.CatServer, "Command stderr", "id", cmd.ID, "stderr", stderr)
		}
	}
	return decodeResponse(chunks)
}

func (c *Channel) failure(cmd Command, argv []string, run *commandRun, err error) error {
	cerr := &CommandError{
		Description: cmd.Description,
		Args:        argv,
		Stderr:      run.stderrText(),
		Err:         err,
	}
	log.ErrorErr(log.CatServer, "Command failed", err, "id", cmd.ID, "description", cmd.Description)
	return cerr
}

func (c *Channel) ensureStarted(ctx context.Context) (*worker, error) {
	c.mu.Lock()
	w := c.w
	c.mu.Unlock()
	if w != nil && w.alive() {
		return w, nil
	}
	if w != nil {
		c.teardown(w)
	}

	path, err := c.paths.CodeQLPathWithoutVersionCheck(ctx)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New("failed to find CodeQL distribution")
	}

	w, err = startWorker(c.factory, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.w = w
	c.mu.Unlock()
	return w, nil
}

// teardown stops w and forgets it if it is still the current worker.
func (c *Channel) teardown(w *worker) {
	c.mu.Lock()
	if c.w == w {
		c.w = nil
	}
	c.mu.Unlock()
	w.shutdown()
}

// Shutdown stops the worker if one is running. The next Execute starts a new
// one.
func (c *Channel) Shutdown() {
	c.mu.Lock()
	w := c.w
	c.w = nil
	c.mu.Unlock()
	if w != nil {
		w.shutdown()
	}
}

// Close stops the worker and rejects later commands.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Shutdown()
}
