package cliserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/qlcli/internal/log"
	"github.com/zjrosen/qlcli/internal/tracing"
)

const (
	maxRecordSize   = 64 * 1024 * 1024
	maxStderrLine   = 64 * 1024
	stderrTailLines = 20
)

// LineLogger receives each stderr line of a streaming command.
type LineLogger func(line string)

// StreamRunner runs commands that report progress as a stream of JSON
// records. Every run starts its own process; runs are not queued and may
// overlap freely.
type StreamRunner struct {
	paths   PathResolver
	factory CommandFactoryFunc
	tracer  trace.Tracer
}

// NewStreamRunner creates a StreamRunner. factory and tracer may be nil.
func NewStreamRunner(paths PathResolver, factory CommandFactoryFunc, tracer trace.Tracer) *StreamRunner {
	if factory == nil {
		factory = defaultCommandFactory
	}
	return &StreamRunner{paths: paths, factory: factory, tracer: tracer}
}

// Run starts "<codeql> <command> --format jsonz <args>" when the sequence is
// iterated and yields each NUL-separated record. Cancelling ctx or stopping
// the iteration kills the process and all of its children. A cancelled run
// ends with an error wrapping ctx.Err(); a failed run ends with a
// *CommandError. Records yielded before a failure are not retracted.
func (r *StreamRunner) Run(ctx context.Context, command, args []string, description string, logger LineLogger) iter.Seq2[json.RawMessage, error] {
	argv := make([]string, 0, len(command)+2+len(args))
	argv = append(argv, command...)
	argv = append(argv, "--format", "jsonz")
	argv = append(argv, args...)

	return func(yield func(json.RawMessage, error) bool) {
		id := uuid.NewString()
		ctx, span := tracing.StartCommand(ctx, r.tracer, tracing.ModeStream, id, command, args, description)
		var runErr error
		events := 0
		defer func() {
			if r.tracer != nil {
				span.SetAttributes(attribute.Int(tracing.AttrEventCount, events))
				tracing.EndCommand(span, runErr)
			}
		}()

		fail := func(err error) {
			runErr = err
			yield(nil, err)
		}

		path, err := r.paths.CodeQLPathWithoutVersionCheck(ctx)
		if err != nil {
			fail(&CommandError{Description: description, Args: argv, Err: err})
			return
		}
		if path == "" {
			fail(&CommandError{Description: description, Args: argv, Err: errors.New("failed to find CodeQL distribution")})
			return
		}

		p, err := startStream(ctx, r.factory, path, argv, logger)
		if err != nil {
			fail(&CommandError{Description: description, Args: argv, Err: err})
			return
		}
		log.Info(log.CatStream, "Started streaming command", "id", id, "pid", p.pid(), "args", strings.Join(argv, " "))

		stopWatch := context.AfterFunc(ctx, func() {
			log.Debug(log.CatStream, "Cancelling streaming command", "id", id)
			p.kill()
		})
		defer stopWatch()

		scanner := bufio.NewScanner(p.stdout)
		scanner.Buffer(make([]byte, 0, readBufferSize), maxRecordSize)
		scanner.Split(splitNUL)

		for scanner.Scan() {
			if ctx.Err() != nil {
				break
			}
			rec := make([]byte, len(scanner.Bytes()))
			copy(rec, scanner.Bytes())
			events++
			if !yield(json.RawMessage(rec), nil) {
				log.Debug(log.CatStream, "Consumer stopped streaming command", "id", id)
				p.kill()
				_ = p.wait()
				return
			}
		}
		scanErr := scanner.Err()
		if scanErr != nil {
			p.kill()
		}

		waitErr := p.wait()

		if err := ctx.Err(); err != nil {
			if r.tracer != nil {
				span.AddEvent(tracing.EventCancelled)
			}
			fail(fmt.Errorf("%s cancelled: %w", description, err))
			return
		}
		if scanErr != nil {
			fail(&CommandError{Description: description, Args: argv, Stderr: p.stderrTail(), Err: scanErr})
			return
		}
		if waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) && r.tracer != nil {
				span.SetAttributes(attribute.Int(tracing.AttrExitCode, exitErr.ExitCode()))
			}
			fail(&CommandError{Description: description, Args: argv, Stderr: p.stderrTail(), Err: waitErr})
			return
		}
		log.Info(log.CatStream, "Streaming command completed", "id", id, "events", events)
	}
}

// streamProcess is one running streaming command.
type streamProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader

	killOnce sync.Once
	stderrWG sync.WaitGroup

	mu   sync.Mutex
	tail []string
}

func startStream(ctx context.Context, factory CommandFactoryFunc, path string, argv []string, logger LineLogger) (*streamProcess, error) {
	cmd := factory(ctx, path, argv...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}

	p := &streamProcess{cmd: cmd, stdout: stdout}
	p.stderrWG.Add(1)
	go func() {
		defer p.stderrWG.Done()
		readLines(stderr, maxStderrLine, func(line string) {
			p.remember(line)
			if logger != nil {
				logger(line)
			} else {
				log.Debug(log.CatStream, line)
			}
		})
	}()
	return p, nil
}

// readLines calls fn for each line of r until EOF. Lines longer than limit are
// cut to limit bytes and the rest of the line is discarded, so r is always
// read to the end.
func readLines(r io.Reader, limit int, fn func(string)) {
	br := bufio.NewReaderSize(r, 4096)
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if room := limit - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if len(line) > 0 {
			fn(strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r"))
		}
		line = line[:0]
		if err != nil {
			return
		}
	}
}

func (p *streamProcess) pid() int {
	return p.cmd.Process.Pid
}

func (p *streamProcess) kill() {
	p.killOnce.Do(func() {
		if err := killProcessTree(p.pid()); err != nil {
			log.Warn(log.CatStream, "Failed to kill process tree", "pid", p.pid(), "error", err)
		}
	})
}

// wait reaps the process once stderr has been drained.
func (p *streamProcess) wait() error {
	p.stderrWG.Wait()
	return p.cmd.Wait()
}

func (p *streamProcess) remember(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail = append(p.tail, line)
	if len(p.tail) > stderrTailLines {
		p.tail = p.tail[len(p.tail)-stderrTailLines:]
	}
}

func (p *streamProcess) stderrTail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.tail, "\n")
}

// DecodeEvents parses each record of seq into T. A record that does not parse
// ends the sequence with an error naming description.
func DecodeEvents[T any](seq iter.Seq2[json.RawMessage, error], description string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for raw, err := range seq {
			if err != nil {
				yield(zero, err)
				return
			}
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				yield(zero, fmt.Errorf("parsing output of %s failed: %w", description, err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
