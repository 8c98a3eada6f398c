package cliserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/zjrosen/qlcli/internal/log"
)

// CommandFactoryFunc creates the exec.Cmd for a codeql process. Tests use it
// to substitute a fake executable.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

func defaultCommandFactory(_ context.Context, name string, args ...string) *exec.Cmd {
	// #nosec G204 -- name is the resolved codeql executable
	return exec.Command(name, args...)
}

const readBufferSize = 64 * 1024

// chunkHandler receives one read from a worker pipe. The slice is owned by the
// handler.
type chunkHandler func(chunk []byte)

// worker is a running cli-server process. Output is delivered to whichever
// handlers are attached at the time it is read; with none attached it is
// logged and dropped.
type worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu       sync.Mutex
	onStdout chunkHandler
	onStderr chunkHandler
	stopped  bool

	readers sync.WaitGroup
	exited  chan struct{}
	exitErr error
}

// startWorker launches "<path> execute cli-server" with logging flags and the
// optional JVM debug agent.
func startWorker(factory CommandFactoryFunc, path string) (*worker, error) {
	args := []string{"execute", "cli-server"}
	args = append(args, loggingFlags...)
	if ShouldDebugCliServer() {
		args = append(args, javaDebugFlag)
	}

	cmd := factory(context.Background(), path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("cli-server: creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("cli-server: creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("cli-server: creating stderr pipe: %w", err)
	}

	log.Info(log.CatServer, "Starting cli-server", "path", path, "args", strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("failed to start cli-server using command %s %s: %w", path, strings.Join(args, " "), err)
	}

	w := &worker{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		exited: make(chan struct{}),
	}

	w.readers.Add(2)
	go w.pump(stdout, func(w *worker) chunkHandler { return w.onStdout }, "stdout")
	go w.pump(stderr, func(w *worker) chunkHandler { return w.onStderr }, "stderr")
	go w.wait()

	log.Info(log.CatServer, "cli-server started", "pid", cmd.Process.Pid)
	return w, nil
}

// attach installs handlers for the duration of one command and returns the
// func that removes them.
func (w *worker) attach(stdout, stderr chunkHandler) (detach func()) {
	w.mu.Lock()
	w.onStdout, w.onStderr = stdout, stderr
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		w.onStdout, w.onStderr = nil, nil
		w.mu.Unlock()
	}
}

func (w *worker) pump(r io.Reader, current func(*worker) chunkHandler, stream string) {
	defer w.readers.Done()

	buf := make([]byte, readBufferSize)
	var last []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			last = chunk

			w.mu.Lock()
			handler := current(w)
			w.mu.Unlock()

			if handler != nil {
				handler(chunk)
			} else {
				log.Debug(log.CatServer, "Unsolicited cli-server output", "stream", stream, "bytes", n)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Debug(log.CatServer, "cli-server read error", "stream", stream, "error", err)
			}
			if stream == "stdout" && len(last) > 0 && !isFrameEnd(last) {
				// Often the JVM's last words.
				log.Debug(log.CatServer, "Last cli-server stdout", "data", string(last))
			}
			return
		}
	}
}

func (w *worker) wait() {
	w.readers.Wait()
	err := w.cmd.Wait()

	w.mu.Lock()
	w.exitErr = err
	stopped := w.stopped
	w.mu.Unlock()

	if err != nil && !stopped {
		log.Warn(log.CatServer, "cli-server exited", "error", err)
	} else {
		log.Debug(log.CatServer, "cli-server exited", "error", err)
	}
	close(w.exited)
}

// exitError returns the process error once exited is closed.
func (w *worker) exitError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.exitErr == nil {
		return errors.New("cli-server process exited unexpectedly")
	}
	return w.exitErr
}

func (w *worker) alive() bool {
	select {
	case <-w.exited:
		return false
	default:
		return true
	}
}

func (w *worker) write(p []byte) error {
	_, err := w.stdin.Write(p)
	return err
}

// shutdown asks the worker to exit, then kills it and closes every pipe.
// Safe to call more than once.
func (w *worker) shutdown() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	log.Info(log.CatServer, "Stopping cli-server", "pid", w.cmd.Process.Pid)

	if frame, err := encodeRequest([]string{"shutdown"}); err == nil && w.alive() {
		_ = w.write(frame)
	}
	_ = w.stdin.Close()
	_ = w.cmd.Process.Kill()
	_ = w.stdout.Close()
	_ = w.stderr.Close()
}
